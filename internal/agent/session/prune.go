package session

import (
	"context"
	"time"

	"github.com/tgifai/cronturn/internal/pkg/logs"
)

const defaultPruneInterval = 10 * time.Minute

// PruneOnce drops entries idle for longer than ttl together with their transcripts.
func PruneOnce(ctx context.Context, store *Store, transcripts *Transcripts, ttl time.Duration, now time.Time) (int, error) {
	removed, err := store.Prune(ctx, now.Add(-ttl))
	if err != nil {
		return 0, err
	}
	if transcripts != nil {
		for _, sessionID := range removed {
			if err := transcripts.Delete(ctx, sessionID); err != nil {
				logs.CtxWarn(ctx, "[session] drop transcript %s: %v", sessionID, err)
			}
		}
	}
	return len(removed), nil
}

// StartPruneLoop runs PruneOnce every interval until ctx is done. A
// non-positive ttl disables pruning.
func StartPruneLoop(ctx context.Context, store *Store, transcripts *Transcripts, ttl, interval time.Duration) {
	if ttl <= 0 || store == nil {
		return
	}
	if interval <= 0 {
		interval = defaultPruneInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := PruneOnce(ctx, store, transcripts, ttl, now)
				if err != nil {
					logs.CtxWarn(ctx, "[session] prune failed: %v", err)
					continue
				}
				if removed > 0 {
					logs.CtxInfo(ctx, "[session] pruned %d idle session(s) from %s", removed, store.Path())
				}
			}
		}
	}()
}
