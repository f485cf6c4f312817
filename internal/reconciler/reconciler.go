// Package reconciler decides, per (user, video) playback session, whether a
// batch of telemetry samples should move the persisted resume position.
//
// The decision policy, in precedence order for each sample:
//
//	end reset    |currentTime - duration| < end window  -> position 0, ended
//	seek jump    seeked forward, or a preview sample corroborating a
//	             pending controls seek backward          -> authoritative
//	large gap    |currentTime - baseline| >= threshold   -> playback progress
//	cold start   no prior record, early sample, not final -> suppress
//	otherwise    suppress
//
// Controls-originated seeks are deferred: they only set a pending flag that
// a later preview sample may corroborate. Final samples bypass the cold
// start guard, commit the closing position, and clear session state.
// Within one batch the last accepted decision per pair wins; all decisions
// are evaluated against the persisted baseline, never against earlier
// in-batch intents, so replaying a batch re-derives identical intents.
package reconciler

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/SyedJoN/mytube-backend/internal/session"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
)

// Source surfaces reported by the player.
const (
	SourceControls      = "controls"
	SourceHover         = "hover"
	SourceAutoplayHover = "autoplay-hover"
)

// Config holds the decision thresholds, all in seconds of media time.
type Config struct {
	EndWindow    float64
	GapThreshold float64
	ColdStart    float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		EndWindow:    0.5,
		GapThreshold: 10,
		ColdStart:    10,
	}
}

// Baseline is the last persisted resume position for a pair, or absent.
type Baseline struct {
	CurrentTime float64
	HasEnded    bool
	Exists      bool
}

// BaselineSource yields the persisted watch-history baseline for a pair.
type BaselineSource interface {
	LastRecorded(ctx context.Context, userID, videoID string) (Baseline, error)
}

// Upsert is one reconciled write intent for a (user, video) pair. UpdatedAt
// carries the triggering sample's timestamp; the persistence layer must
// apply the upsert only when its stored last_updated is not newer, which
// makes replays of the same batch no-ops.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Upsert struct {
	UserID      string
	VideoID     string
	CurrentTime float64
	Duration    float64
	HasEnded    bool
	UpdatedAt   time.Time
}

// Outcome is the result of reconciling one batch.
type Outcome struct {
	// Upserts holds at most one intent per (user, video) pair, in first-
	// trigger order.
	Upserts []Upsert

	// GuestPositions maps videoId to the last reported position of
	// anonymous sessions in this batch. Response-only, never persisted.
	GuestPositions map[string]float64

	// Skipped counts samples that produced no durable intent.
	Skipped int
}

// session phases per (user, video) pair, tracked for the batch's duration.
type phase int

const (
	phaseIdle phase = iota
	phaseRecording
	phaseCommitted
)

type pairState struct {
	baseline    Baseline
	baselineErr bool
	phase       phase
	upsert      *Upsert
}

// Reconciler evaluates telemetry batches. All per-session coordination
// state is keyed by (user|anon, video); nothing is shared across pairs.
type Reconciler struct {
	cfg       Config
	baselines BaselineSource
	seeks     session.Store
	guestCap  int
}

// New creates a Reconciler. guestCap bounds the guest-position map per
// batch; zero means no bound.
func New(cfg Config, baselines BaselineSource, seeks session.Store, guestCap int) *Reconciler {
	return &Reconciler{
		cfg:       cfg,
		baselines: baselines,
		seeks:     seeks,
		guestCap:  guestCap,
	}
}

// ReconcileBatch processes events in arrival order and returns the
// collapsed write intents. Events must already be validated and normalized.
func (r *Reconciler) ReconcileBatch(ctx context.Context, events []*models.TelemetryEvent) (*Outcome, error) {
	out := &Outcome{GuestPositions: make(map[string]float64)}
	pairs := make(map[string]*pairState)
	var order []string

	for _, ev := range events {
		if ev.Anonymous() {
			r.reconcileGuest(ctx, ev, out)
			out.Skipped++
			continue
		}

		key := ev.SessionKey()
		st, ok := pairs[key]
		if !ok {
			st = &pairState{}
			st.baseline, st.baselineErr = r.fetchBaseline(ctx, ev)
			pairs[key] = st
			order = append(order, key)
		}
		if st.baselineErr {
			// Without a trustworthy baseline every decision is a guess;
			// the raw event is still logged upstream.
			out.Skipped++
			continue
		}

		v := r.evaluate(ctx, ev, st)
		switch v.act {
		case actUpdate, actReset:
			up := Upsert{
				UserID:      ev.UserID,
				VideoID:     ev.VideoID,
				CurrentTime: ev.CurrentTime,
				Duration:    ev.Duration,
				UpdatedAt:   ev.OccurredAt,
			}
			if v.act == actReset {
				up.CurrentTime = 0
				up.HasEnded = true
			}
			st.upsert = &up
			st.phase = phaseRecording
		default:
			out.Skipped++
		}

		if ev.Final {
			if err := r.seeks.ClearPendingSeek(ctx, key); err != nil {
				logger.Log.Warn("Failed to clear pending seek state",
					zap.Error(err),
					zap.String("videoId", ev.VideoID),
				)
			}
			if st.phase == phaseRecording {
				st.phase = phaseCommitted
			} else {
				st.phase = phaseIdle
			}
		}
	}

	for _, key := range order {
		if up := pairs[key].upsert; up != nil {
			out.Upserts = append(out.Upserts, *up)
		}
	}

	return out, nil
}

type action int

const (
	actSuppress action = iota
	actUpdate
	actReset
)

type verdict struct {
	act    action
	reason string
}

// evaluate applies the controls-seek deferral and the classification table
// to a single authenticated sample.
func (r *Reconciler) evaluate(ctx context.Context, ev *models.TelemetryEvent, st *pairState) verdict {
	key := ev.SessionKey()

	// Controls seeks defer: the scrubber emits the flag before the player
	// settles, so the new position is only a hint until corroborated.
	// Final samples are exempt, there is nothing left to corroborate.
	if ev.Seeked && ev.Source == SourceControls && !ev.Final {
		if err := r.seeks.SetPendingSeek(ctx, key); err != nil {
			logger.Log.Warn("Failed to set pending seek state",
				zap.Error(err),
				zap.String("videoId", ev.VideoID),
			)
		}
		return verdict{actSuppress, "seek-deferred"}
	}

	base := st.baseline

	// End-of-video reset.
	if ev.Duration > 0 && math.Abs(ev.CurrentTime-ev.Duration) < r.cfg.EndWindow {
		return verdict{actReset, "end-reset"}
	}

	// Forward seeks are authoritative.
	if ev.Seeked && ev.CurrentTime > base.CurrentTime {
		return verdict{actUpdate, "seek-forward"}
	}

	// A preview sample jumping backward corroborates a pending controls
	// seek; consume the flag only when it actually matches.
	if isPreviewSource(ev.Source) && ev.CurrentTime < base.CurrentTime {
		pending, err := r.seeks.ConsumePendingSeek(ctx, key)
		if err != nil {
			logger.Log.Warn("Failed to read pending seek state",
				zap.Error(err),
				zap.String("videoId", ev.VideoID),
			)
		}
		if pending {
			return verdict{actUpdate, "seek-corroborated"}
		}
	}

	// Large gap: ordinary playback progressed far enough to persist.
	if !ev.Seeked && math.Abs(ev.CurrentTime-base.CurrentTime) >= r.cfg.GapThreshold {
		return verdict{actUpdate, "gap"}
	}

	// Cold start guard: no record yet and the session barely started.
	if !base.Exists && ev.CurrentTime < r.cfg.ColdStart && !ev.Final {
		return verdict{actSuppress, "cold-start"}
	}

	// A closing sample commits whatever position the session ended on.
	if ev.Final && ev.CurrentTime != base.CurrentTime {
		return verdict{actUpdate, "final-commit"}
	}

	return verdict{actSuppress, "no-progress"}
}

// reconcileGuest records the last known position for the response and keeps
// the pending-seek bookkeeping so an anonymous session that later signs in
// does not carry stale flags.
func (r *Reconciler) reconcileGuest(ctx context.Context, ev *models.TelemetryEvent, out *Outcome) {
	key := ev.SessionKey()

	if ev.Seeked && ev.Source == SourceControls && !ev.Final {
		if err := r.seeks.SetPendingSeek(ctx, key); err != nil {
			logger.Log.Warn("Failed to set guest pending seek state", zap.Error(err))
		}
	}
	if ev.Final {
		if err := r.seeks.ClearPendingSeek(ctx, key); err != nil {
			logger.Log.Warn("Failed to clear guest pending seek state", zap.Error(err))
		}
	}

	if _, seen := out.GuestPositions[ev.VideoID]; !seen && r.guestCap > 0 && len(out.GuestPositions) >= r.guestCap {
		return
	}
	out.GuestPositions[ev.VideoID] = ev.CurrentTime
}

func (r *Reconciler) fetchBaseline(ctx context.Context, ev *models.TelemetryEvent) (Baseline, bool) {
	base, err := r.baselines.LastRecorded(ctx, ev.UserID, ev.VideoID)
	if err != nil {
		logger.Log.Warn("Failed to fetch watch history baseline",
			zap.Error(err),
			zap.String("videoId", ev.VideoID),
		)
		return Baseline{}, true
	}
	return base, false
}

func isPreviewSource(source string) bool {
	return source == SourceHover || source == SourceAutoplayHover
}
