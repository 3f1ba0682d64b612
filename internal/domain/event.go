package domain

import "time"

// CacheMetadata describes the last persisted snapshot.
type CacheMetadata struct {
	LastRefresh string `json:"lastRefresh"`
	Count       int    `json:"count"`
	SizeBytes   int    `json:"sizeBytes"`
}

// RefreshEvent summarizes one successful refresh for downstream consumers.
type RefreshEvent struct {
	Source      string    `json:"source"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Parsed      int       `json:"parsed"`
	Added       int       `json:"added"`
	Pruned      int       `json:"pruned"`
	Total       int       `json:"total"`
	Status      Status    `json:"status"`
}
