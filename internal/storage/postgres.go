package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cloak-engine/internal/config"
	"cloak-engine/internal/engine"
)

// Postgres stores one jsonb document per key in a single table. The schema:
//
//	CREATE TABLE IF NOT EXISTS documents (
//	    key        text PRIMARY KEY,
//	    doc        jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool    *pgxpool.Pool
	channel string
}

func New(ctx context.Context, cfg config.Config) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Postgres{pool: pool, channel: cfg.Listener.Channel}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) GetDomain(ctx context.Context, domain string) (engine.DomainConfig, error) {
	var cfg engine.DomainConfig
	if err := s.get(ctx, domainKeyPrefix+strings.ToLower(domain), &cfg); err != nil {
		return engine.DomainConfig{}, err
	}
	return cfg, nil
}

func (s *Postgres) PutDomain(ctx context.Context, cfg engine.DomainConfig) error {
	return s.put(ctx, domainKeyPrefix+strings.ToLower(cfg.Domain), cfg)
}

func (s *Postgres) DeleteDomain(ctx context.Context, domain string) error {
	return s.delete(ctx, domainKeyPrefix+strings.ToLower(domain))
}

func (s *Postgres) GetFilters(ctx context.Context, linkID string) (engine.FilterSettings, error) {
	var fs engine.FilterSettings
	if err := s.get(ctx, filtersKeyPrefix+linkID, &fs); err != nil {
		return engine.FilterSettings{}, err
	}
	return fs, nil
}

func (s *Postgres) PutFilters(ctx context.Context, linkID string, fs engine.FilterSettings) error {
	return s.put(ctx, filtersKeyPrefix+linkID, fs)
}

func (s *Postgres) get(ctx context.Context, key string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) put(ctx context.Context, key string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, key, raw)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	// Best effort: wake up decision-path caches on other instances.
	_, _ = s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, key)
	return nil
}

func (s *Postgres) delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, _ = s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, key)
	return nil
}

func (s *Postgres) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

func (s *Postgres) ListenChannel() string { return s.channel }
