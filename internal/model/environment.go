// Package model contains the persistence-facing structs shared between the
// repositories, the reservation engine and the HTTP layer.  All timestamps
// are unix seconds (UTC) so that expiry arithmetic stays integral.
package model

// Environment is a named shared resource that at most one user can hold at
// a time.  MaxTTLSeconds is nil when the environment has no per-env cap; a
// global hard cap still applies.  Archived environments are excluded from
// reservation operations but keep their history.
type Environment struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"` // unique, normalized (see utils.NormalizeEnvName)
	Description       string `json:"description,omitempty"`
	DefaultTTLSeconds int64  `json:"default_ttl_seconds"`
	MaxTTLSeconds     *int64 `json:"max_ttl_seconds,omitempty"`
	IsArchived        bool   `json:"is_archived"`
	AnnounceEnabled   bool   `json:"announce_enabled"`
	ChannelID         string `json:"channel_id,omitempty"`
	CreatedBy         string `json:"created_by"`
	CreatedAt         int64  `json:"created_at"`
}
