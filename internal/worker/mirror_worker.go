package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendigo/internal/amqp"
	"spendigo/internal/cache"
	"spendigo/internal/feed"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
	"spendigo/internal/sheets"
)

// Mirror sync results, used as metric labels.
const (
	ResultWritten   = "written"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// ChangeSource delivers change notifications until ctx ends.
type ChangeSource interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// UserLister enumerates every user with ledger data.
type UserLister interface {
	Users(ctx context.Context) ([]string, error)
}

// MirrorWorker keeps each user's spreadsheet mirror equal to the ledger.
// Every notification triggers a full re-fetch; a periodic pass over all
// users recovers from notifications lost while the worker was down.
type MirrorWorker struct {
	changes  ChangeSource
	users    UserLister
	refresh  *feed.Refresher
	mirror   sheets.LedgerMirror
	digests  cache.Cache[string]
	interval time.Duration
	logger   *log.Logger
}

func NewMirrorWorker(changes ChangeSource, users UserLister, refresh *feed.Refresher, mirror sheets.LedgerMirror,
	digests cache.Cache[string], interval time.Duration, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &MirrorWorker{
		changes:  changes,
		users:    users,
		refresh:  refresh,
		mirror:   mirror,
		digests:  digests,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes notifications and runs the periodic resync until ctx ends
// or one of them fails.
func (w *MirrorWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.changes.ConsumeChanges(ctx, w.HandleChange)
	})

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := w.SyncAll(ctx); err != nil {
						w.logger.WarnContext(ctx, "Periodic mirror resync failed", log.FieldOperation, log.OpSync, log.FieldError, err)
					}
				}
			}
		})
	}

	return g.Wait()
}

// HandleChange mirrors the notified user. Errors make the message requeue.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.DebugContext(ctx, "Processing ledger change",
		log.FieldUserID, msg.UserID,
		"kind", msg.Kind,
		"entity_id", msg.EntityID)

	_, err := w.SyncUser(ctx, msg.UserID)
	return err
}

// SyncUser re-reads the user's ledger and rewrites the mirror unless it
// already holds exactly this content. It returns the sync result.
func (w *MirrorWorker) SyncUser(ctx context.Context, userID string) (string, error) {
	snap, err := w.refresh.Fetch(ctx, userID)
	if err != nil {
		metrics.MirrorSyncs.WithLabelValues(ResultError).Inc()
		return ResultError, fmt.Errorf("refresh ledger: %w", err)
	}

	digest, err := snapshotDigest(snap)
	if err != nil {
		metrics.MirrorSyncs.WithLabelValues(ResultError).Inc()
		return ResultError, err
	}
	if last, ok := w.digests.Get(userID); ok && last == digest {
		metrics.MirrorSyncs.WithLabelValues(ResultUnchanged).Inc()
		return ResultUnchanged, nil
	}

	if err := w.mirror.WriteSnapshot(ctx, snap); err != nil {
		metrics.MirrorSyncs.WithLabelValues(ResultError).Inc()
		w.digests.Delete(userID)
		return ResultError, fmt.Errorf("write mirror: %w", err)
	}
	w.digests.Set(userID, digest)
	metrics.MirrorSyncs.WithLabelValues(ResultWritten).Inc()

	w.logger.InfoContext(ctx, "Mirror updated",
		log.FieldUserID, userID,
		"sources", len(snap.Sources),
		"expenses", len(snap.Expenses))
	return ResultWritten, nil
}

// SyncAll mirrors every known user, continuing past individual failures.
func (w *MirrorWorker) SyncAll(ctx context.Context) error {
	users, err := w.users.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	written, failed := 0, 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result, err := w.SyncUser(ctx, userID)
		if err != nil {
			failed++
			w.logger.ErrorContext(ctx, "Failed to mirror user", log.FieldOperation, log.OpSync, log.FieldUserID, userID, log.FieldError, err)
			continue
		}
		if result == ResultWritten {
			written++
		}
	}

	w.logger.InfoContext(ctx, "Mirror resync completed",
		"users", len(users),
		"written", written,
		"errors", failed)
	return nil
}

// snapshotDigest hashes the mirrored content, leaving out the generation
// time so identical ledgers produce identical digests.
func snapshotDigest(snap sheets.Snapshot) (string, error) {
	body, err := json.Marshal(struct {
		Sources  any `json:"sources"`
		Expenses any `json:"expenses"`
	}{snap.Sources, snap.Expenses})
	if err != nil {
		return "", fmt.Errorf("digest snapshot: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
