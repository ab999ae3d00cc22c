package requests

import "github.com/address-formatter/app/models"

// MaxBatchRecords upper bound of one batch job
const MaxBatchRecords = 20000

// ParseAddressRequest request parsing one legacy record
type ParseAddressRequest struct {
	ID         string            `json:"id" binding:"required"` // Source record key
	Lines      []string          `json:"lines" binding:"max=6"` // Up to six free-text lines
	Attributes map[string]string `json:"attributes,omitempty"`  // Pass-through columns
	Trace      bool              `json:"trace,omitempty"`       // Return per-line roles
}

// Record converts the request into a legacy record
func (r ParseAddressRequest) Record() models.UnstructuredAddress {
	raw := models.NewUnstructuredAddress(r.ID, r.Lines...)
	raw.Attributes = r.Attributes
	return raw
}

// BatchRecord one record of a batch job
type BatchRecord struct {
	ID         string            `json:"id"`
	Lines      []string          `json:"lines" binding:"max=6"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// BatchParseRequest request parsing many records asynchronously.
// Records without an id are kept and reported as rejected.
type BatchParseRequest struct {
	Records []BatchRecord `json:"records" binding:"required,min=1,max=20000,dive"`
	Trace   bool          `json:"trace,omitempty"`
}

// Legacy converts the batch into legacy records in input order
func (r BatchParseRequest) Legacy() []models.UnstructuredAddress {
	out := make([]models.UnstructuredAddress, len(r.Records))
	for i, rec := range r.Records {
		out[i] = models.NewUnstructuredAddress(rec.ID, rec.Lines...)
		out[i].Attributes = rec.Attributes
	}
	return out
}

// InvalidateCacheRequest request dropping cached parse results
type InvalidateCacheRequest struct {
	All bool `json:"all,omitempty"` // also drop entries of the current rules version
}
