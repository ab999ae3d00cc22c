// Package cloudwriter uploads export files to object storage
package cloudwriter

// CloudWriter buffers an object and uploads it on Close
type CloudWriter interface {
	Write(data []byte) (int, error)
	Close() error
}

// CloudWriterFactory opens writers for objects in a bucket
type CloudWriterFactory interface {
	NewWriter(bucket, objectPath string) (CloudWriter, error)
}
