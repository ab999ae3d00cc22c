package cloudwriter

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	calls                    int
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3WriterUploadsOnClose(t *testing.T) {
	putter := &fakePutter{}
	w, err := NewS3WriterFactoryFromClient(putter).NewWriter("exports", "run-1/addresses.csv")
	require.NoError(t, err)

	_, err = w.Write([]byte("old_id;city\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("1;Bern\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, putter.calls)

	require.NoError(t, w.Close())
	assert.Equal(t, 1, putter.calls)
	assert.Equal(t, "exports", putter.bucket)
	assert.Equal(t, "run-1/addresses.csv", putter.key)
	assert.Equal(t, "text/csv", putter.contentType)
	assert.Equal(t, "old_id;city\n1;Bern\n", string(putter.body))

	require.NoError(t, w.Close())
	assert.Equal(t, 1, putter.calls)

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestS3WriterUploadError(t *testing.T) {
	boom := errors.New("access denied")
	w, err := NewS3WriterFactoryFromClient(&fakePutter{err: boom}).NewWriter("b", "a.parquet")
	require.NoError(t, err)
	assert.ErrorIs(t, w.Close(), boom)
}

func TestNewWriterRequiresTarget(t *testing.T) {
	_, err := NewS3WriterFactoryFromClient(&fakePutter{}).NewWriter("", "a.csv")
	assert.Error(t, err)
}
