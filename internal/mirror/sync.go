package mirror

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Syncer keeps a local checkout of the package repository reasonably
// fresh. It is a freshness gate, not a lock: two concurrent callers can
// both pass the staleness check and both sync, which is tolerated
// because clone/pull is idempotent.
type Syncer struct {
	dir      string
	remote   string
	interval time.Duration

	now func() time.Time
	run func(ctx context.Context, dir string, args ...string) error

	mu       sync.Mutex
	lastSync time.Time
}

func NewSyncer(dir, remote string, interval time.Duration) *Syncer {
	return &Syncer{
		dir:      dir,
		remote:   remote,
		interval: interval,
		now:      time.Now,
		run:      runGit,
	}
}

// EnsureFresh clones the checkout if absent, pulls otherwise, unless a
// sync succeeded within the configured interval. The timestamp advances
// only on success.
func (s *Syncer) EnsureFresh(ctx context.Context) error {
	s.mu.Lock()
	last := s.lastSync
	s.mu.Unlock()

	now := s.now()
	if !last.IsZero() && now.Sub(last) < s.interval {
		return nil
	}

	var err error
	if _, statErr := os.Stat(s.dir); os.IsNotExist(statErr) {
		log.Info().Str("dir", s.dir).Str("remote", s.remote).Msg("cloning checkout")
		err = s.run(ctx, "", "clone", s.remote, s.dir)
	} else {
		log.Debug().Str("dir", s.dir).Msg("pulling checkout")
		err = s.run(ctx, s.dir, "pull", "--ff-only")
	}
	if err != nil {
		return fmt.Errorf("syncing checkout: %w", err)
	}

	s.mu.Lock()
	s.lastSync = s.now()
	s.mu.Unlock()
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, out)
	}
	return nil
}
