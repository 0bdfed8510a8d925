package dashboard

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
)

// Reloader swaps in a freshly loaded snapshot.
type Reloader interface {
	Load(ctx context.Context) (*facts.Snapshot, error)
}

type reloadNotice struct {
	RunID      string `json:"run_id"`
	Generation int64  `json:"generation"`
}

// Listen reloads the snapshot for every notice received on payloads until ctx
// is cancelled or the channel closes. Notices that queue up while a load is in
// progress collapse into a single reload.
func Listen(ctx context.Context, logg *logger.Logger, payloads <-chan string, loader Reloader) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-payloads:
			if !ok {
				return
			}
			payload, ok = drain(payloads, payload)
			reloadOnce(ctx, logg, payload, loader)
			if !ok {
				return
			}
		}
	}
}

// drain returns the newest pending payload; ok is false once the channel closed.
func drain(payloads <-chan string, latest string) (string, bool) {
	for {
		select {
		case next, ok := <-payloads:
			if !ok {
				return latest, false
			}
			latest = next
		default:
			return latest, true
		}
	}
}

func reloadOnce(ctx context.Context, logg *logger.Logger, payload string, loader Reloader) {
	var notice reloadNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		logg.Warn(logg.WithField(ctx, "payload", payload), "unreadable reload notice; reloading anyway")
	}
	lctx := ctx
	if notice.RunID != "" {
		lctx = logg.WithRunID(ctx, notice.RunID)
	}
	if _, err := loader.Load(lctx); err != nil {
		logg.Error(logg.WithField(lctx, "generation", notice.Generation), "snapshot reload failed", err)
	}
}
