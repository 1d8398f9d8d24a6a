// Package presence keeps the bot's status line set, re-asserting it on a
// cron schedule since Discord drops custom status after some reconnects.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/esquie-bot/esquie/pkg/logger"
)

// Setter applies a status line.
type Setter func(status string) error

type Service struct {
	expr   string
	status string
	set    Setter
	gron   *gronx.Gronx

	mu       sync.Mutex
	stopChan chan struct{}
	now      func() time.Time
}

// NewService returns a service that applies status whenever expr is due.
// An empty expr disables the schedule; Apply still works.
func NewService(expr, status string, set Setter) *Service {
	return &Service{
		expr:   expr,
		status: status,
		set:    set,
		gron:   gronx.New(),
		now:    time.Now,
	}
}

// Apply sets the status line now.
func (s *Service) Apply() {
	if s.status == "" {
		return
	}
	if err := s.set(s.status); err != nil {
		logger.WarnCF("presence", "Failed to set status", map[string]interface{}{"error": err})
		return
	}
	logger.DebugCF("presence", "Status set", map[string]interface{}{"status": s.status})
}

// Start runs the schedule until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	if s.expr == "" {
		logger.InfoC("presence", "Presence schedule disabled")
		return nil
	}

	s.mu.Lock()
	if s.stopChan != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	logger.InfoCF("presence", "Presence schedule started", map[string]interface{}{"cron": s.expr})
	go s.runLoop(ctx, stop)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
}

func (s *Service) runLoop(ctx context.Context, stop chan struct{}) {
	// Align to the start of the next minute; cron has minute resolution.
	now := s.now()
	wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
			s.tick(s.now())
			timer.Reset(time.Minute)
		}
	}
}

// tick applies the status if the schedule is due at t.
func (s *Service) tick(t time.Time) bool {
	due, err := s.gron.IsDue(s.expr, t.Truncate(time.Minute))
	if err != nil {
		logger.WarnCF("presence", "Invalid presence schedule", map[string]interface{}{
			"cron":  s.expr,
			"error": err,
		})
		return false
	}
	if due {
		s.Apply()
	}
	return due
}
