package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler periodically purges assignments that have been trashed for
// longer than the retention period.
type Scheduler struct {
	cron      *cron.Cron
	pruner    Pruner
	schedule  string
	retention time.Duration

	mu         sync.RWMutex
	lastRun    time.Time
	lastPruned int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler initializes a new Scheduler instance
func NewScheduler(pruner Pruner, schedule string, retention time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the prune job. Nothing is scheduled when retention is zero.
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	if s.retention <= 0 {
		log.Println("Prune retention not set, tombstones are kept forever")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runPrune); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()

	log.Printf("Scheduler started, pruning tombstones older than %s on %q", s.retention, s.schedule)
	return nil
}

// Stop waits for a running prune to finish
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()

	<-s.cron.Stop().Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) runPrune() {
	if _, err := s.RunPrune(); err != nil {
		log.Printf("Prune failed: %v", err)
	}
}

// RunPrune prunes once, outside the schedule.
func (s *Scheduler) RunPrune() (int64, error) {
	n, err := s.pruner.Prune(s.ctx, s.retention)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastPruned = n
	s.mu.Unlock()

	log.Printf("Pruned %d trashed assignments", n)
	return n, nil
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"jobs":        len(s.cron.Entries()),
		"running":     s.ctx.Err() == nil,
		"last_pruned": s.lastPruned,
	}

	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun.Format(time.RFC3339)
	}

	return status
}

// Global scheduler instance
var globalScheduler *Scheduler

// Initialize creates and starts the global scheduler
func Initialize(pruner Pruner, schedule string, retention time.Duration) error {
	globalScheduler = NewScheduler(pruner, schedule, retention)
	return globalScheduler.Start()
}

// Shutdown stops the global scheduler
func Shutdown() {
	if globalScheduler != nil {
		globalScheduler.Stop()
	}
}
