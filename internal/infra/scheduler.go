package infra

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"papertrade/internal/service"
)

// reconcileTimeout bounds a single audit run
const reconcileTimeout = 5 * time.Minute

// Reconciler audits every account
type Reconciler interface {
	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

// Scheduler runs the ledger reconciliation on a cron schedule
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string

	mu   sync.Mutex
	last *service.ReconcileReport
}

// NewScheduler creates a new scheduler. schedule is a standard five-field
// cron expression; an empty schedule disables the periodic run.
func NewScheduler(reconciler Reconciler, schedule string) *Scheduler {
	logger := cron.VerbosePrintfLogger(log.New(os.Stdout, "[CRON] ", log.LstdFlags))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		reconciler: reconciler,
		schedule:   schedule,
	}
}

// Start registers the reconcile job and starts the cron loop
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		log.Println("[INFO] Reconcile schedule empty, periodic audit disabled")
		return nil
	}

	log.Printf("Starting scheduler... [Reconcile: %s]", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		if _, err := s.RunNow(ctx); err != nil {
			log.Printf("[ERROR] Scheduled reconcile failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Println("[OK] Scheduler started successfully")
	return nil
}

// Stop stops the scheduler and waits for a running audit to finish
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	<-s.cron.Stop().Done()
	log.Println("[OK] Scheduler stopped")
}

// RunNow performs an audit immediately and remembers its report
func (s *Scheduler) RunNow(ctx context.Context) (*service.ReconcileReport, error) {
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent audit report, or nil before the first run
func (s *Scheduler) LastReport() *service.ReconcileReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
