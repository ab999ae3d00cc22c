package sink

import (
	"context"
	"sync"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/search"
)

// DocumentIndexer accepts batches of search documents
type DocumentIndexer interface {
	AddDocuments(ctx context.Context, docs []search.AddressDocument) error
}

const defaultIndexBatch = 500

// IndexSink buffers addresses and sends them to the search index in batches
type IndexSink struct {
	indexer   DocumentIndexer
	batchSize int

	mu      sync.Mutex
	pending []search.AddressDocument
}

// NewIndexSink creates an IndexSink; batchSize <= 0 uses 500
func NewIndexSink(indexer DocumentIndexer, batchSize int) *IndexSink {
	if batchSize <= 0 {
		batchSize = defaultIndexBatch
	}
	return &IndexSink{indexer: indexer, batchSize: batchSize}
}

func (is *IndexSink) Write(ctx context.Context, addr *models.StructuredAddress) error {
	is.mu.Lock()
	is.pending = append(is.pending, search.DocumentFromAddress(addr))
	if len(is.pending) < is.batchSize {
		is.mu.Unlock()
		return nil
	}
	batch := is.pending
	is.pending = nil
	is.mu.Unlock()

	return is.indexer.AddDocuments(ctx, batch)
}

// Flush sends buffered documents
func (is *IndexSink) Flush(ctx context.Context) error {
	is.mu.Lock()
	batch := is.pending
	is.pending = nil
	is.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return is.indexer.AddDocuments(ctx, batch)
}

// Close flushes the remaining documents
func (is *IndexSink) Close() error {
	return is.Flush(context.Background())
}
