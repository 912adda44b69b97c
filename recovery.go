/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package relayer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// lockKeyPattern matches every admission lock across all job kinds.
const lockKeyPattern = "intents:*:LOCK"

// ReapOrphanedLocks releases admission locks whose task never reached the
// queue. A crash between the atomic admission and the enqueue leaves the
// lock and its counter slot behind with no job to release them; without
// this sweep that intent could never be admitted again. Only locks older
// than olderThan are considered, so an admission whose enqueue is still in
// progress is never touched, and a lock whose task the queue still knows
// (pending, active or retrying) is left alone. Returns how many locks were
// released.
func (r *Relayer) ReapOrphanedLocks(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := r.locks.StaleLocks(ctx, lockKeyPattern, olderThan)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, lockKey := range stale {
		exists, err := r.queue.HasTask(ctx, lockKey)
		if err != nil {
			logrus.Errorf("failed to check queue for lock %s: %v", lockKey, err)
			continue
		}
		if exists {
			continue
		}
		if err := r.locks.Release(ctx, lockKey); err != nil {
			logrus.Errorf("failed to release orphaned lock %s: %v", lockKey, err)
			continue
		}
		LocksReaped.Inc()
		logrus.Warnf("released orphaned lock %s", lockKey)
		reaped++
	}
	return reaped, nil
}

// LockReaper periodically sweeps for orphaned admission locks.
type LockReaper struct {
	relayer        *Relayer
	pollInterval   time.Duration
	staleThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewLockReaper(r *Relayer) *LockReaper {
	return &LockReaper{
		relayer:        r,
		pollInterval:   30 * time.Second,
		staleThreshold: 5 * time.Minute,
		stopCh:         make(chan struct{}),
	}
}

func (p *LockReaper) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("orphaned lock reaper started")
}

func (p *LockReaper) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("orphaned lock reaper stopped")
}

func (p *LockReaper) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if _, err := p.relayer.ReapOrphanedLocks(ctx, p.staleThreshold); err != nil {
				logrus.Errorf("orphaned lock sweep failed: %v", err)
			}
		}
	}
}
