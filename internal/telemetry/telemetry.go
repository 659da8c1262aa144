// Package telemetry is the fire-and-forget audit sink. Events are buffered
// on a channel and drained by one goroutine; a full buffer drops the event
// rather than blocking the decision path.
package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"

	"cloak-engine/internal/engine"
	"cloak-engine/internal/observability"
)

// Event is one client-reported or engine-emitted audit record.
type Event struct {
	HashedIdentifier string   `json:"hashed_identifier,omitempty"`
	Event            string   `json:"event"`
	Reason           string   `json:"reason,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	MLScore          *float64 `json:"ml_score,omitempty"`
	JSTimeMS         *float64 `json:"js_time_ms,omitempty"`
	IsFalsePositive  *bool    `json:"is_false_positive,omitempty"`
	IsFalseNegative  *bool    `json:"is_false_negative,omitempty"`
	PageURL          string   `json:"page_url,omitempty"`
}

// Sink drains events asynchronously. Failures are logged, never surfaced.
type Sink struct {
	ch chan Event
}

func NewSink(buffer int) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	return &Sink{ch: make(chan Event, buffer)}
}

// Start launches the drain goroutine; it exits when ctx is canceled.
func (s *Sink) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-s.ch:
				observability.TelemetryEvents.Inc()
				log.Info().
					Str("event", ev.Event).
					Str("reason", ev.Reason).
					Str("id", ev.HashedIdentifier).
					Msg("telemetry")
			}
		}
	}()
}

// Record enqueues an event, dropping it if the buffer is full.
func (s *Sink) Record(ev Event) {
	select {
	case s.ch <- ev:
	default:
		log.Warn().Str("event", ev.Event).Msg("telemetry buffer full; event dropped")
	}
}

// EmitDecision implements engine.Sink.
func (s *Sink) EmitDecision(res engine.DecisionResult) {
	observability.DecisionsTotal.WithLabelValues(string(res.Verdict)).Inc()
	for _, o := range res.Trail {
		if o.Outcome == engine.OutcomeBlock {
			observability.FilterBlocksTotal.WithLabelValues(o.Filter).Inc()
		}
	}
	s.Record(Event{
		HashedIdentifier: res.FingerprintHash,
		Event:            "decision_" + string(res.Verdict),
		Reason:           res.Reason,
		Score:            res.RiskScore,
	})
}
