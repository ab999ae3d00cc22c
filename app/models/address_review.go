package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review reasons
const (
	ReviewReasonDroppedLines = "dropped_lines"
	ReviewReasonNoPostalCode = "no_postal_code"
	ReviewReasonNoAddress    = "no_address_line"
)

// AddressReview migrated record that needs a human look
type AddressReview struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OldID      string             `bson:"old_id" json:"old_id"`                                   // Source record key
	RunID      string             `bson:"run_id,omitempty" json:"run_id,omitempty"`               // Migration run that queued it
	Lines      []string           `bson:"lines" json:"lines"`                                     // Compacted source lines
	Result     StructuredAddress  `bson:"result" json:"result"`                                   // Automatic parse
	Trace      []TraceEntry       `bson:"trace" json:"trace"`                                     // Per-line roles
	Reasons    []string           `bson:"reasons" json:"reasons"`                                 // Why it was queued
	Status     string             `bson:"status" json:"status"`                                   // Review status
	Manual     *StructuredAddress `bson:"manual_result,omitempty" json:"manual_result,omitempty"` // Corrected result
	ReviewerID *string            `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time         `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Status constants
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// NewAddressReview creates a pending review
func NewAddressReview(runID string, lines []string, result StructuredAddress, trace []TraceEntry, reasons []string) *AddressReview {
	return &AddressReview{
		OldID:     result.ID,
		RunID:     runID,
		Lines:     lines,
		Result:    result,
		Trace:     trace,
		Reasons:   reasons,
		Status:    ReviewStatusPending,
		CreatedAt: time.Now(),
	}
}

// ReviewReasons lists why a parse result deserves review. Empty means it does not.
func ReviewReasons(result *StructuredAddress, dropped []string) []string {
	var reasons []string
	if len(dropped) > 0 {
		reasons = append(reasons, ReviewReasonDroppedLines)
	}
	if result.Postal.IsZero() {
		reasons = append(reasons, ReviewReasonNoPostalCode)
	}
	switch v := result.Address.(type) {
	case Street:
		if v.Street == "" {
			reasons = append(reasons, ReviewReasonNoAddress)
		}
	case nil:
		reasons = append(reasons, ReviewReasonNoAddress)
	}
	return reasons
}

// Approve accepts the automatic result
func (ar *AddressReview) Approve(reviewerID string) {
	ar.mark(ReviewStatusApproved, reviewerID)
}

// Reject flags the automatic result as wrong
func (ar *AddressReview) Reject(reviewerID string) {
	ar.mark(ReviewStatusRejected, reviewerID)
}

// SetManualResult stores a corrected result and approves it
func (ar *AddressReview) SetManualResult(result StructuredAddress, reviewerID string) {
	ar.Manual = &result
	ar.mark(ReviewStatusApproved, reviewerID)
}

// IsPending reports whether nobody reviewed it yet
func (ar *AddressReview) IsPending() bool {
	return ar.Status == ReviewStatusPending
}

func (ar *AddressReview) mark(status, reviewerID string) {
	ar.Status = status
	ar.ReviewerID = &reviewerID
	now := time.Now()
	ar.ReviewedAt = &now
}
