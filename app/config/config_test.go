package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// chdirTemp moves into an empty directory so no config/app.yaml is found
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadViper_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadViper(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "CH", cfg.Parser.DefaultCountry)
	assert.True(t, cfg.Parser.StreetOnly)
	assert.Equal(t, SourcePostgres, cfg.Source.Kind)
	assert.Len(t, cfg.Source.LineColumns, 6)
	assert.Equal(t, []string{SinkPostgres}, cfg.Sink.Kinds)
	assert.Equal(t, ";", cfg.Export.Delimiter)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadViper_File(t *testing.T) {
	path := writeFile(t, "app.yaml", `
parser:
  default_country: li
source:
  kind: csv
  csv_path: legacy.csv
  line_columns: [a, b, c]
sink:
  kinds: [mongo, kafka]
  columns:
    country:
      default: CH
    title:
      name: salutation
      value: "-"
cache:
  ttl: 90m
`)

	cfg, err := LoadViper(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "LI", cfg.Parser.DefaultCountry)
	assert.Equal(t, SourceCSV, cfg.Source.Kind)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Source.LineColumns)
	assert.Equal(t, []string{SinkMongo, SinkKafka}, cfg.Sink.Kinds)
	assert.Equal(t, ColumnConfig{Default: "CH"}, cfg.Sink.Columns["country"])
	assert.Equal(t, ColumnConfig{Name: "salutation", Value: "-"}, cfg.Sink.Columns["title"])
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
}

func TestLoadViper_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SOURCE_DSN", "postgres://env@localhost/legacy")
	t.Setenv("WORKER_CONCURRENCY", "16")
	t.Setenv("SINK_KINDS", "mongo,meilisearch")

	cfg, err := LoadViper(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@localhost/legacy", cfg.Source.DSN)
	assert.Equal(t, 16, cfg.Worker.Concurrency)
	assert.Equal(t, []string{SinkMongo, SinkMeilisearch}, cfg.Sink.Kinds)
}

func TestLoadViper_MissingExplicitFile(t *testing.T) {
	_, err := LoadViper(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ADDRFMT_TEST_A=from-file\nADDRFMT_TEST_B=from-file\n")
	t.Setenv("ADDRFMT_TEST_B", "from-env")
	os.Unsetenv("ADDRFMT_TEST_A")
	t.Cleanup(func() { os.Unsetenv("ADDRFMT_TEST_A") })

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("ADDRFMT_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("ADDRFMT_TEST_B"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Parser: ParserConfig{DefaultCountry: "CHE"},
		Worker: WorkerConfig{Concurrency: 0},
		Sink:   SinkConfig{Kinds: []string{"ftp"}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_country")
	assert.Contains(t, err.Error(), "worker.concurrency")
	assert.Contains(t, err.Error(), `unknown sink "ftp"`)
}

func TestValidateMigration(t *testing.T) {
	cfg := &Config{
		Parser: ParserConfig{DefaultCountry: "CH"},
		Worker: WorkerConfig{Concurrency: 1},
		Source: SourceConfig{Kind: SourcePostgres, LineColumns: []string{"a", "b", "c", "d", "e", "f", "g"}},
		Sink:   SinkConfig{Kinds: []string{SinkPostgres, SinkMongo}, Table: "dest"},
	}

	err := cfg.ValidateMigration()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.dsn")
	assert.Contains(t, err.Error(), "expected 1 to 6 columns, got 7")
	assert.Contains(t, err.Error(), "mongo.url")

	cfg.Source = SourceConfig{Kind: SourceCSV, CSVPath: "in.csv", LineColumns: []string{"a"}}
	cfg.Sink = SinkConfig{Kinds: []string{SinkNone}}
	assert.NoError(t, cfg.ValidateMigration())
}

func TestValidateExport(t *testing.T) {
	cfg := &Config{Export: ExportConfig{Format: FormatCSV, Delimiter: ";;", Path: ""}}
	err := cfg.ValidateExport()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delimiter")
	assert.Contains(t, err.Error(), "export.path")

	cfg.Export = ExportConfig{Format: FormatParquet, Path: "out.parquet"}
	assert.NoError(t, cfg.ValidateExport())
}

func TestSinkDSN(t *testing.T) {
	cfg := &Config{Source: SourceConfig{DSN: "src"}}
	assert.Equal(t, "src", cfg.SinkDSN())
	cfg.Sink.DSN = "dst"
	assert.Equal(t, "dst", cfg.SinkDSN())
}
