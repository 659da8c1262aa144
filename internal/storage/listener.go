package storage

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Invalidator drops a cached document by its store key.
type Invalidator interface {
	Invalidate(key string)
}

// ListenAndInvalidate subscribes to the store's NOTIFY channel and drops
// cached config entries when their document changes. The payload is the
// document key.
func ListenAndInvalidate(ctx context.Context, st *Postgres, inv Invalidator, baseBackoff time.Duration) {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("acquire conn for listen")
		return
	}
	defer conn.Release()

	channel := st.ListenChannel()
	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("listen")
		return
	}
	log.Info().Str("channel", channel).Msg("listening for config changes")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		default:
			ntf, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := jitter(baseBackoff)
				log.Error().Err(err).Dur("retry_in", backoff).Msg("notify wait error")
				time.Sleep(backoff)
				continue
			}
			log.Info().Str("key", ntf.Payload).Msg("config changed; invalidating")
			inv.Invalidate(ntf.Payload)
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
