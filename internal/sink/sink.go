package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/address-formatter/app/models"
)

// Sink persists structured addresses. Implementations are safe for concurrent Write calls.
type Sink interface {
	Write(ctx context.Context, addr *models.StructuredAddress) error
	Close() error
}

// ReviewQueue stores records that need a human look
type ReviewQueue interface {
	Enqueue(ctx context.Context, review *models.AddressReview) error
}

// Multi writes every address to each sink in order
type Multi []Sink

func (m Multi) Write(ctx context.Context, addr *models.StructuredAddress) error {
	for _, s := range m {
		if err := s.Write(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every address (dry runs)
type Discard struct{}

func (Discard) Write(context.Context, *models.StructuredAddress) error { return nil }
func (Discard) Close() error                                          { return nil }

// Memory keeps written addresses and reviews in memory
type Memory struct {
	mu      sync.Mutex
	written []*models.StructuredAddress
	reviews []*models.AddressReview
	closed  bool
}

// NewMemory creates an empty Memory sink
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(_ context.Context, addr *models.StructuredAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, addr)
	return nil
}

func (m *Memory) Enqueue(_ context.Context, review *models.AddressReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written addresses in write order
func (m *Memory) Written() []*models.StructuredAddress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.StructuredAddress(nil), m.written...)
}

// Reviews queued reviews in enqueue order
func (m *Memory) Reviews() []*models.AddressReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AddressReview(nil), m.reviews...)
}

// Closed reports whether Close was called
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
