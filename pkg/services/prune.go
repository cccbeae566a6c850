package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/dropshare/internal/blob"
	"github.com/tgdrive/dropshare/internal/cache"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/internal/store"
	"go.uber.org/zap"
)

const pruneBatch = 100

type PruneResult struct {
	Records      int
	Blobs        int
	MissingBlobs int
	Failed       int
}

// Prune removes every file that expired at or before now: blob first, then
// record, then any cached copy. Files whose blob cannot be removed are kept
// for the next run.
func (s *FileService) Prune(ctx context.Context, now time.Time) (*PruneResult, error) {
	res := &PruneResult{}
	logger := logging.FromContext(ctx)
	failed := make(map[string]struct{})

	for {
		limit := pruneBatch + len(failed)
		files, err := s.store.ListExpired(ctx, now, limit)
		if err != nil {
			return res, errors.Wrap(err, "list expired")
		}

		progress := 0
		for _, f := range files {
			if _, ok := failed[f.ID]; ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}

			err := s.blobs.Delete(ctx, f.ID)
			switch {
			case errors.Is(err, blob.ErrNotFound):
				res.MissingBlobs++
			case err != nil:
				logger.Error("failed to delete blob", zap.String("id", f.ID), zap.Error(err))
				failed[f.ID] = struct{}{}
				res.Failed++
				continue
			default:
				res.Blobs++
			}

			if err := s.store.Delete(ctx, f.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				logger.Error("failed to delete record", zap.String("id", f.ID), zap.Error(err))
				failed[f.ID] = struct{}{}
				res.Failed++
				continue
			}
			res.Records++
			progress++

			if err := s.cache.Delete(ctx, cache.KeyFile(f.ID)); err != nil {
				logger.Warn("failed to evict cached record", zap.String("id", f.ID), zap.Error(err))
			}
		}

		if progress == 0 || len(files) < limit {
			break
		}
	}

	if res.Records > 0 || res.Failed > 0 {
		logger.Info("pruned expired files",
			zap.Int("records", res.Records),
			zap.Int("blobs", res.Blobs),
			zap.Int("missing-blobs", res.MissingBlobs),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}
