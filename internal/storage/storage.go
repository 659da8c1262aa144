// Package storage adapts a JSON-document key-value store for domain and
// filter-settings configuration. Reads and writes are whole-document; a
// read-modify-write caller re-reads, mutates a local copy, and puts the
// full document back.
package storage

import (
	"context"
	"errors"

	"cloak-engine/internal/engine"
)

// ErrNotFound is returned when no document exists for a key.
var ErrNotFound = errors.New("storage: not found")

// Store is the configuration document contract used by the orchestrator
// and the mutation endpoints.
type Store interface {
	GetDomain(ctx context.Context, domain string) (engine.DomainConfig, error)
	PutDomain(ctx context.Context, cfg engine.DomainConfig) error
	DeleteDomain(ctx context.Context, domain string) error

	GetFilters(ctx context.Context, linkID string) (engine.FilterSettings, error)
	PutFilters(ctx context.Context, linkID string, fs engine.FilterSettings) error
}

const (
	domainKeyPrefix  = "domain:"
	filtersKeyPrefix = "filters:"
)
