// Package leaderboard materializes atomically-versioned top-N gainer/loser
// batches from the wide ticker store: a periodic, mutex-guarded read-sort-
// insert pass plus TTL-based pruning.
package leaderboard

import (
	"sync"
	"time"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/metrics"
)

// Store is the subset of the analytical store the synchronizer needs. Top-N
// gainer/loser selection is pushed down to the store since it's naturally a
// sorted, filtered, limited query over the wide table.
type Store interface {
	TopGainers(limit int) ([]domain.Ticker, error)
	TopLosers(limit int) ([]domain.Ticker, error)
	InsertLeaderboardBatch(entries []domain.LeaderboardEntry) error
	CleanupLeaderboard(retention time.Duration) (int64, error)
}

// Synchronizer runs the periodic sync; mu serializes runs so batches never
// interleave.
type Synchronizer struct {
	store Store
	topN  int
	mu    sync.Mutex
}

func New(store Store, topN int) *Synchronizer {
	if topN <= 0 {
		topN = 10
	}
	return &Synchronizer{store: store, topN: topN}
}

// Run performs one sync pass: read top movers, stamp a batch id, insert.
func (s *Synchronizer) Run() error {
	if !s.mu.TryLock() {
		logger.Warnf("⚠️  [leaderboard] previous sync still running, skipping this tick")
		return nil
	}
	defer s.mu.Unlock()

	gainers, err := s.store.TopGainers(s.topN)
	if err != nil {
		return err
	}
	losers, err := s.store.TopLosers(s.topN)
	if err != nil {
		return err
	}
	if len(gainers) == 0 && len(losers) == 0 {
		metrics.LeaderboardBatchesTotal.WithLabelValues("skipped").Inc()
		return nil // cold start before the price-refresh worker has run; skip degenerate batch
	}

	batchTime := time.Now().UTC()
	batchTimeLong := batchTime.UnixMilli()

	entries := make([]domain.LeaderboardEntry, 0, len(gainers)+len(losers))
	for i, t := range gainers {
		entries = append(entries, toEntry(t, i+1, batchTime, batchTimeLong))
	}
	for i, t := range losers {
		entries = append(entries, toEntry(t, i+1, batchTime, batchTimeLong))
	}

	if err := s.store.InsertLeaderboardBatch(entries); err != nil {
		return err
	}
	metrics.LeaderboardBatchesTotal.WithLabelValues("written").Inc()
	return nil
}

func toEntry(t domain.Ticker, rank int, batchTime time.Time, batchTimeLong int64) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		Ticker:             t,
		Rank:               rank,
		CreateDatetime:     batchTime,
		CreateDatetimeLong: batchTimeLong,
	}
}

// Cleaner periodically deletes batches older than the retention window.
type Cleaner struct {
	store     Store
	retention time.Duration
}

func NewCleaner(store Store, retentionMinutes int) *Cleaner {
	if retentionMinutes <= 0 {
		retentionMinutes = 5
	}
	return &Cleaner{store: store, retention: time.Duration(retentionMinutes) * time.Minute}
}

func (c *Cleaner) Run() {
	n, err := c.store.CleanupLeaderboard(c.retention)
	if err != nil {
		logger.Errorf("❌ [leaderboard] cleanup failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("🧹 [leaderboard] pruned %d stale leaderboard rows", n)
	}
}
