package search

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/address-formatter/app/models"
	ms "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// AddressDocument flattened address as stored in the index
type AddressDocument struct {
	ID          string `json:"id"`
	OldID       string `json:"old_id"`
	Title       string `json:"title,omitempty"`
	Name        string `json:"name,omitempty"`
	Compl1      string `json:"compl1,omitempty"`
	Compl2      string `json:"compl2,omitempty"`
	Kind        string `json:"kind"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	PoBox       string `json:"po_box,omitempty"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

var validDocID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,511}$`)

// DocumentID derives an index key from a legacy id. Ids Meilisearch would
// reject are hex encoded.
func DocumentID(oldID string) string {
	if validDocID.MatchString(oldID) {
		return oldID
	}
	return "x" + hex.EncodeToString([]byte(oldID))
}

// DocumentFromAddress flattens a structured address
func DocumentFromAddress(a *models.StructuredAddress) AddressDocument {
	doc := AddressDocument{
		ID:      DocumentID(a.ID),
		OldID:   a.ID,
		Title:   a.Title,
		Name:    a.Name,
		Compl1:  a.Compl1,
		Compl2:  a.Compl2,
		City:    a.City,
		Country: a.Country,
		Kind:    models.AddressKindStreet,
	}
	if !a.Postal.IsZero() {
		doc.PostalCode = a.Postal.Format()
	}
	switch v := a.Address.(type) {
	case models.PoBox:
		doc.Kind = models.AddressKindPoBox
		doc.PoBox = v.BoxNumber
	case models.Street:
		doc.Street = v.Street
		doc.HouseNumber = v.HouseNumber
	}
	return doc
}

// IndexConfig Meilisearch connection and index
type IndexConfig struct {
	URL       string
	APIKey    string
	IndexName string
	Timeout   time.Duration
}

// AddressIndex Meilisearch index of migrated addresses
type AddressIndex struct {
	client    ms.ServiceManager
	indexName string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAddressIndex connects and checks Meilisearch health
func NewAddressIndex(cfg IndexConfig, logger *zap.Logger) (*AddressIndex, error) {
	client := NewClient(cfg.URL, cfg.APIKey)
	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("error connecting to Meilisearch: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &AddressIndex{
		client:    client,
		indexName: cfg.IndexName,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Configure applies searchable and filterable attributes and waits for the task
func (ai *AddressIndex) Configure(ctx context.Context) error {
	settings := &ms.Settings{
		SearchableAttributes: []string{"name", "street", "city", "compl1", "compl2", "old_id"},
		FilterableAttributes: []string{"country", "postal_code", "city", "kind"},
		SortableAttributes:   []string{"postal_code", "city"},
	}
	task, err := ai.client.Index(ai.indexName).UpdateSettings(settings)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return ai.wait(ctx, task.TaskUID)
}

// AddDocuments indexes a batch of addresses without waiting for the task
func (ai *AddressIndex) AddDocuments(ctx context.Context, docs []AddressDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	task, err := ai.client.Index(ai.indexName).AddDocuments(docs, "id")
	if err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}
	ai.logger.Debug("Documents queued for indexing",
		zap.Int("count", len(docs)),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// Search queries the index
func (ai *AddressIndex) Search(ctx context.Context, query string, filter Filter, limit int64) ([]AddressDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	req := &ms.SearchRequest{Limit: limit}
	if f := filter.String(); f != "" {
		req.Filter = f
	}
	resp, err := ai.client.Index(ai.indexName).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return DecodeHits(resp.Hits)
}

// DecodeHits converts raw search hits into documents
func DecodeHits(hits interface{}) ([]AddressDocument, error) {
	data, err := json.Marshal(hits)
	if err != nil {
		return nil, err
	}
	var docs []AddressDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	return docs, nil
}

var errTaskFailed = errors.New("meilisearch task failed")

func (ai *AddressIndex) wait(ctx context.Context, taskUID int64) error {
	ctx, cancel := context.WithTimeout(ctx, ai.timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		task, err := ai.client.GetTask(taskUID)
		if err != nil {
			return fmt.Errorf("get task %d: %w", taskUID, err)
		}
		switch task.Status {
		case ms.TaskStatusSucceeded:
			return nil
		case ms.TaskStatusFailed:
			return fmt.Errorf("%w: task %d", errTaskFailed, taskUID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
