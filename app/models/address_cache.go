package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddressCache persisted parse result keyed by line fingerprint
type AddressCache struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Fingerprint  string             `bson:"fingerprint" json:"fingerprint"`       // SHA-256 of the compacted lines
	Result       ParseResult        `bson:"result" json:"result"`                 // Parse result, ID of the first record seen
	RulesVersion string             `bson:"rules_version" json:"rules_version"`   // Pattern rules the result was built with
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount  int                `bson:"access_count" json:"access_count"`
}

// NewAddressCache creates a cache document
func NewAddressCache(fingerprint string, result ParseResult, rulesVersion string) *AddressCache {
	now := time.Now()
	return &AddressCache{
		Fingerprint:  fingerprint,
		Result:       result,
		RulesVersion: rulesVersion,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
	}
}

// IsExpired reports whether the entry is older than ttl. Zero ttl never expires.
func (ac *AddressCache) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(ac.CreatedAt) > ttl
}
