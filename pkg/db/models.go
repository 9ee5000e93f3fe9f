package db

import "time"

// SignatureRecord represents a row in the resource_signatures table.
type SignatureRecord struct {
	ResourceKey string     `json:"resource_key"`
	Version     string     `json:"version"`
	Methods     []byte     `json:"methods"`
	FetchedAt   time.Time  `json:"fetched_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}
