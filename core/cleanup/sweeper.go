package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"VoiceMorph/logger"
	"VoiceMorph/metrics"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the swept directory.
const LockFileName = ".sweep.lock"

// ErrSweepInProgress is returned when another process holds the sweep lock.
var ErrSweepInProgress = errors.New("sweep already running")

// Result summarizes one pass.
type Result struct {
	Scanned int
	Removed int
	Failed  int
}

// Sweeper deletes regular files older than MaxAge from a flat directory.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	lock   *flock.Flock
	now    func() time.Time
}

func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		lock:   flock.New(filepath.Join(dir, LockFileName)),
		now:    time.Now,
	}
}

// SweepOnce runs a single pass. A missing directory is not an error.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	var res Result

	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		return res, nil
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return res, ErrSweepInProgress
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			logger.Warn("释放清理锁失败", logger.ErrorField(err))
		}
	}()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if entry.Name() == LockFileName || !entry.Type().IsRegular() {
			continue
		}
		res.Scanned++

		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			res.Failed++
			logger.Warn("清理文件失败", logger.String("file", path), logger.ErrorField(err))
			continue
		}
		res.Removed++
		metrics.SweptFiles.Inc()
		logger.Debug("已清理过期文件", logger.String("file", entry.Name()))
	}

	return res, nil
}

// Run sweeps immediately and then every interval until ctx is done. A
// non-positive interval sweeps once and returns.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)
	if interval <= 0 {
		logger.Warn("清理间隔无效，定时清理已停用", logger.Duration("interval", interval))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		logger.Info("另一个清理任务正在运行，跳过本次清理")
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Error("清理任务失败", logger.ErrorField(err))
	case res.Removed > 0 || res.Failed > 0:
		logger.Info("清理任务完成",
			logger.Int("removed", res.Removed),
			logger.Int("failed", res.Failed),
			logger.Int("scanned", res.Scanned))
	}
}
