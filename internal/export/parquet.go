package export

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetParallelism = 4

// ParquetWriter writes every column as an optional UTF8 string
type ParquetWriter struct {
	file source.ParquetFile
	pw   *writer.CSVWriter
}

// NewParquetWriter creates a Parquet file with one column per header entry
func NewParquetWriter(out io.WriteCloser, header []string) (*ParquetWriter, error) {
	return NewParquetFileWriter(NewStreamParquetFile(out), header)
}

// NewParquetFileWriter writes to an already created Parquet file
func NewParquetFileWriter(file source.ParquetFile, header []string) (*ParquetWriter, error) {
	pw, err := writer.NewCSVWriter(ParquetSchema(header), file, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	return &ParquetWriter{file: file, pw: pw}, nil
}

// ParquetSchema CSV-writer metadata for header
func ParquetSchema(header []string) []string {
	md := make([]string, len(header))
	for i, name := range header {
		md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
	}
	return md
}

func (p *ParquetWriter) Write(row []*string) error {
	return p.pw.WriteString(row)
}

// Close writes the footer and closes the underlying file
func (p *ParquetWriter) Close() error {
	if err := p.pw.WriteStop(); err != nil {
		p.file.Close()
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return p.file.Close()
}

// StreamParquetFile adapts a sequential writer to source.ParquetFile.
// The Parquet writer only appends, so reads and backward seeks fail.
type StreamParquetFile struct {
	out    io.WriteCloser
	offset int64
}

// NewStreamParquetFile wraps out
func NewStreamParquetFile(out io.WriteCloser) *StreamParquetFile {
	return &StreamParquetFile{out: out}
}

func (s *StreamParquetFile) Create(string) (source.ParquetFile, error) {
	return s, nil
}

func (s *StreamParquetFile) Open(string) (source.ParquetFile, error) {
	return s, nil
}

func (s *StreamParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		if offset != s.offset {
			return s.offset, fmt.Errorf("seek to %d not supported on a stream", offset)
		}
	case io.SeekCurrent:
		if offset != 0 {
			return s.offset, fmt.Errorf("relative seek not supported on a stream")
		}
	default:
		return s.offset, fmt.Errorf("seek from end not supported on a stream")
	}
	return s.offset, nil
}

func (s *StreamParquetFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported on a stream")
}

func (s *StreamParquetFile) Write(p []byte) (int, error) {
	n, err := s.out.Write(p)
	s.offset += int64(n)
	return n, err
}

func (s *StreamParquetFile) Close() error {
	return s.out.Close()
}
