package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Source kinds
const (
	SourcePostgres = "postgres"
	SourceCSV      = "csv"
)

// Sink kinds
const (
	SinkPostgres    = "postgres"
	SinkMongo       = "mongo"
	SinkKafka       = "kafka"
	SinkMeilisearch = "meilisearch"
	SinkNone        = "none"
)

// Export formats
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Config application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Parser      ParserConfig      `mapstructure:"parser"`
	Source      SourceConfig      `mapstructure:"source"`
	Sink        SinkConfig        `mapstructure:"sink"`
	Export      ExportConfig      `mapstructure:"export"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Meilisearch MeilisearchConfig `mapstructure:"meilisearch"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type ParserConfig struct {
	DefaultCountry string `mapstructure:"default_country"`
	StreetOnly     bool   `mapstructure:"street_only"`
	CountryLines   bool   `mapstructure:"country_lines"`
}

// SourceConfig where legacy records are read from
type SourceConfig struct {
	Kind             string   `mapstructure:"kind"`
	DSN              string   `mapstructure:"dsn"`
	Table            string   `mapstructure:"table"`
	IDColumn         string   `mapstructure:"id_column"`
	LineColumns      []string `mapstructure:"line_columns"`      // up to six, in slot order
	AttributeColumns []string `mapstructure:"attribute_columns"` // copied to the output untouched
	Where            string   `mapstructure:"where"`
	CSVPath          string   `mapstructure:"csv_path"`
	CSVDelimiter     string   `mapstructure:"csv_delimiter"`
	BatchSize        int      `mapstructure:"batch_size"`
}

// ColumnConfig destination column override. Value replaces whatever the
// parser produced; Default fills a blank value.
type ColumnConfig struct {
	Name    string `mapstructure:"name"`
	Value   string `mapstructure:"value"`
	Default string `mapstructure:"default"`
}

// LinkConfig correlation update run after each insert:
// UPDATE table SET ref_column = (SELECT dest id WHERE old_id = id) WHERE orig_column = id
type LinkConfig struct {
	Table      string `mapstructure:"table"`
	RefColumn  string `mapstructure:"ref_column"`
	OrigColumn string `mapstructure:"orig_column"`
}

// SinkConfig where structured addresses are written
type SinkConfig struct {
	Kinds             []string                `mapstructure:"kinds"`
	DSN               string                  `mapstructure:"dsn"`
	Table             string                  `mapstructure:"table"`
	IDColumn          string                  `mapstructure:"id_column"`
	CreateTable       bool                    `mapstructure:"create_table"`
	Columns           map[string]ColumnConfig `mapstructure:"columns"` // keyed by row column
	Link              LinkConfig              `mapstructure:"link"`
	ReviewQueue       bool                    `mapstructure:"review_queue"`
	Collection        string                  `mapstructure:"collection"`
	ReviewsCollection string                  `mapstructure:"reviews_collection"`
}

// ExportConfig flat-file export
type ExportConfig struct {
	Format    string `mapstructure:"format"`
	Delimiter string `mapstructure:"delimiter"`
	Path      string `mapstructure:"path"`
	Query     string `mapstructure:"query"`
	S3Bucket  string `mapstructure:"s3_bucket"`
	S3Region  string `mapstructure:"s3_region"`
	S3Prefix  string `mapstructure:"s3_prefix"`
}

type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	L1Size     int           `mapstructure:"l1_size"`
	RedisURL   string        `mapstructure:"redis_url"`
	TTL        time.Duration `mapstructure:"ttl"`
	Persistent bool          `mapstructure:"persistent"` // keep results in MongoDB
}

type WorkerConfig struct {
	Concurrency   int  `mapstructure:"concurrency"`
	ProgressEvery int  `mapstructure:"progress_every"`
	ProgressBar   bool `mapstructure:"progress_bar"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MeilisearchConfig struct {
	URL       string `mapstructure:"url"`
	MasterKey string `mapstructure:"master_key"`
	Index     string `mapstructure:"index"`
}

// SetDefaults registers every key so AutomaticEnv can override it
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("parser.default_country", "CH")
	v.SetDefault("parser.street_only", true)
	v.SetDefault("parser.country_lines", true)

	v.SetDefault("source.kind", SourcePostgres)
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.table", "")
	v.SetDefault("source.id_column", "id")
	v.SetDefault("source.line_columns", []string{"line1", "line2", "line3", "line4", "line5", "line6"})
	v.SetDefault("source.attribute_columns", []string{})
	v.SetDefault("source.where", "")
	v.SetDefault("source.csv_path", "")
	v.SetDefault("source.csv_delimiter", ";")
	v.SetDefault("source.batch_size", 500)

	v.SetDefault("sink.kinds", []string{SinkPostgres})
	v.SetDefault("sink.dsn", "")
	v.SetDefault("sink.table", "structured_address")
	v.SetDefault("sink.id_column", "id")
	v.SetDefault("sink.create_table", true)
	v.SetDefault("sink.link.table", "")
	v.SetDefault("sink.link.ref_column", "")
	v.SetDefault("sink.link.orig_column", "")
	v.SetDefault("sink.review_queue", true)
	v.SetDefault("sink.collection", "addresses")
	v.SetDefault("sink.reviews_collection", "address_reviews")

	v.SetDefault("export.format", FormatCSV)
	v.SetDefault("export.delimiter", ";")
	v.SetDefault("export.path", "export.csv")
	v.SetDefault("export.query", "")
	v.SetDefault("export.s3_bucket", "")
	v.SetDefault("export.s3_region", "eu-central-1")
	v.SetDefault("export.s3_prefix", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.l1_size", 10000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.persistent", false)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.progress_every", 1000)
	v.SetDefault("worker.progress_bar", true)

	v.SetDefault("mongo.url", "")
	v.SetDefault("mongo.database", "address_formatter")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "structured-addresses")

	v.SetDefault("meilisearch.url", "")
	v.SetDefault("meilisearch.master_key", "")
	v.SetDefault("meilisearch.index", "addresses")
}

// Load reads configuration into the global viper instance, so flags bound
// with viper.BindPFlags take part. An empty path looks for config/app.yaml.
func Load(path string) (*Config, error) {
	return LoadViper(viper.GetViper(), path)
}

// LoadViper reads configuration with v: defaults, then the YAML file, then
// environment variables (SOURCE_DSN overrides source.dsn).
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Parser.DefaultCountry = strings.ToUpper(strings.TrimSpace(cfg.Parser.DefaultCountry))
	return &cfg, nil
}

// LoadDotEnv seeds the process environment from a .env file. Variables
// already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	var errs []error

	if len(c.Parser.DefaultCountry) != 2 {
		errs = append(errs, fmt.Errorf("parser.default_country %q: expected an ISO alpha-2 code", c.Parser.DefaultCountry))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	if c.Cache.Enabled && c.Cache.L1Size < 1 {
		errs = append(errs, errors.New("cache.l1_size must be at least 1"))
	}
	if c.Cache.Persistent && c.Mongo.URL == "" {
		errs = append(errs, errors.New("cache.persistent requires mongo.url"))
	}
	for _, kind := range c.Sink.Kinds {
		switch kind {
		case SinkPostgres, SinkMongo, SinkKafka, SinkMeilisearch, SinkNone:
		default:
			errs = append(errs, fmt.Errorf("sink.kinds: unknown sink %q", kind))
		}
	}

	return errors.Join(errs...)
}

// ValidateMigration checks the source and every configured sink
func (c *Config) ValidateMigration() error {
	errs := []error{c.Validate()}

	switch c.Source.Kind {
	case SourcePostgres:
		if c.Source.DSN == "" || c.Source.Table == "" || c.Source.IDColumn == "" {
			errs = append(errs, errors.New("postgres source requires source.dsn, source.table and source.id_column"))
		}
	case SourceCSV:
		if c.Source.CSVPath == "" {
			errs = append(errs, errors.New("csv source requires source.csv_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown source %q", c.Source.Kind))
	}
	if n := len(c.Source.LineColumns); n == 0 || n > 6 {
		errs = append(errs, fmt.Errorf("source.line_columns: expected 1 to 6 columns, got %d", n))
	}

	for _, kind := range c.Sink.Kinds {
		switch kind {
		case SinkPostgres:
			if c.Sink.DSN == "" && c.Source.DSN == "" {
				errs = append(errs, errors.New("postgres sink requires sink.dsn"))
			}
			if c.Sink.Table == "" {
				errs = append(errs, errors.New("postgres sink requires sink.table"))
			}
		case SinkMongo:
			if c.Mongo.URL == "" {
				errs = append(errs, errors.New("mongo sink requires mongo.url"))
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
				errs = append(errs, errors.New("kafka sink requires kafka.brokers and kafka.topic"))
			}
		case SinkMeilisearch:
			if c.Meilisearch.URL == "" {
				errs = append(errs, errors.New("meilisearch sink requires meilisearch.url"))
			}
		}
	}

	return errors.Join(errs...)
}

// ValidateExport checks the export section
func (c *Config) ValidateExport() error {
	var errs []error
	switch c.Export.Format {
	case FormatCSV:
		if len([]rune(c.Export.Delimiter)) != 1 {
			errs = append(errs, fmt.Errorf("export.delimiter %q: expected one character", c.Export.Delimiter))
		}
	case FormatParquet:
	default:
		errs = append(errs, fmt.Errorf("export.format: unknown format %q", c.Export.Format))
	}
	if c.Export.Path == "" {
		errs = append(errs, errors.New("export.path is required"))
	}
	return errors.Join(errs...)
}

// SinkDSN DSN of the destination database, the source one when unset
func (c *Config) SinkDSN() string {
	if c.Sink.DSN != "" {
		return c.Sink.DSN
	}
	return c.Source.DSN
}

// IsProduction reports whether app.env is production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
