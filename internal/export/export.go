// Package export writes tabular results as CSV or Parquet, locally or to S3
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/address-formatter/app/config"
	"github.com/address-formatter/internal/cloudwriter"
	"github.com/xitongsys/parquet-go-source/local"
)

// Writer receives a header once, then rows. A nil cell is a NULL.
type Writer interface {
	Write(row []*string) error
	Close() error
}

// Target where an export file goes
type Target struct {
	Format    string
	Delimiter rune
	Path      string // local path, or object name when Bucket is set
	Bucket    string
	Prefix    string
}

// TargetFromConfig maps the export section
func TargetFromConfig(cfg config.ExportConfig) Target {
	delimiter := ';'
	if r := []rune(cfg.Delimiter); len(r) == 1 {
		delimiter = r[0]
	}
	return Target{
		Format:    cfg.Format,
		Delimiter: delimiter,
		Path:      cfg.Path,
		Bucket:    cfg.S3Bucket,
		Prefix:    cfg.S3Prefix,
	}
}

// ObjectPath key used for uploads
func (t Target) ObjectPath() string {
	return path.Join(t.Prefix, filepath.Base(t.Path))
}

// Open creates the destination file and a writer for header. factory is only
// used when the target has a bucket.
func Open(ctx context.Context, t Target, header []string, factory cloudwriter.CloudWriterFactory) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out io.WriteCloser
	if t.Bucket != "" {
		if factory == nil {
			return nil, fmt.Errorf("no cloud writer for bucket %s", t.Bucket)
		}
		cw, err := factory.NewWriter(t.Bucket, t.ObjectPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud writer: %w", err)
		}
		out = cw
	} else {
		if dir := filepath.Dir(t.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create export directory: %w", err)
			}
		}
		if t.Format == config.FormatParquet {
			fw, err := local.NewLocalFileWriter(t.Path)
			if err != nil {
				return nil, fmt.Errorf("create parquet file: %w", err)
			}
			w, err := NewParquetFileWriter(fw, header)
			if err != nil {
				fw.Close()
				return nil, err
			}
			return w, nil
		}
		f, err := os.Create(t.Path)
		if err != nil {
			return nil, fmt.Errorf("create export file: %w", err)
		}
		out = f
	}

	w, err := NewWriter(out, t.Format, t.Delimiter, header)
	if err != nil {
		out.Close()
		return nil, err
	}
	return w, nil
}

// NewWriter wraps out in the writer for format. Closing the writer closes out.
func NewWriter(out io.WriteCloser, format string, delimiter rune, header []string) (Writer, error) {
	switch format {
	case config.FormatCSV, "":
		return NewCSVWriter(out, delimiter, header)
	case config.FormatParquet:
		return NewParquetWriter(out, header)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
