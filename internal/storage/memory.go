package storage

import (
	"context"
	"strings"
	"sync"

	"cloak-engine/internal/engine"
)

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	domains map[string]engine.DomainConfig
	filters map[string]engine.FilterSettings
}

func NewMemory() *Memory {
	return &Memory{
		domains: map[string]engine.DomainConfig{},
		filters: map[string]engine.FilterSettings{},
	}
}

func (s *Memory) GetDomain(_ context.Context, domain string) (engine.DomainConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.domains[strings.ToLower(domain)]
	if !ok {
		return engine.DomainConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (s *Memory) PutDomain(_ context.Context, cfg engine.DomainConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[strings.ToLower(cfg.Domain)] = cfg
	return nil
}

func (s *Memory) DeleteDomain(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(domain)
	if _, ok := s.domains[key]; !ok {
		return ErrNotFound
	}
	delete(s.domains, key)
	return nil
}

func (s *Memory) GetFilters(_ context.Context, linkID string) (engine.FilterSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.filters[linkID]
	if !ok {
		return engine.FilterSettings{}, ErrNotFound
	}
	return fs, nil
}

func (s *Memory) PutFilters(_ context.Context, linkID string, fs engine.FilterSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[linkID] = fs
	return nil
}
