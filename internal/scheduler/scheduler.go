// Package scheduler runs periodic catalog maintenance: a tree integrity audit,
// purging of expired capture segments and storage stats logging.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CatalogBot/internal/category"

	"go.uber.org/zap"
)

type Auditor interface {
	Verify(ctx context.Context) ([]category.Problem, error)
	Repair(ctx context.Context) (int, error)
}

type Maintainer interface {
	Stats(ctx context.Context) map[string]interface{}
	PurgeExpired(ctx context.Context) (int64, error)
}

// Notifier delivers a plain text report to one chat.
type Notifier func(chatID int64, text string) error

type Scheduler struct {
	auditor    Auditor
	maintainer Maintainer
	notify     Notifier
	admins     []int64
	interval   time.Duration
	autoRepair bool
	logger     *zap.Logger
}

type Option func(*Scheduler)

// WithNotifications sends audit findings to every admin chat.
func WithNotifications(notify Notifier, admins []int64) Option {
	return func(s *Scheduler) {
		s.notify = notify
		s.admins = admins
	}
}

// WithAutoRepair rebuilds broken subcategory indexes after each audit.
func WithAutoRepair() Option {
	return func(s *Scheduler) { s.autoRepair = true }
}

func NewScheduler(auditor Auditor, maintainer Maintainer, interval time.Duration, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		auditor:    auditor,
		maintainer: maintainer,
		interval:   interval,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Report struct {
	Problems []category.Problem
	Repaired int
	Purged   int64
}

// Start runs maintenance every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("maintenance scheduled", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) RunOnce(ctx context.Context) Report {
	var report Report

	purged, err := s.maintainer.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge expired segments", zap.Error(err))
	}
	report.Purged = purged

	s.logger.Info("storage stats", zap.Any("stats", s.maintainer.Stats(ctx)))

	problems, err := s.auditor.Verify(ctx)
	if err != nil {
		s.logger.Error("category audit failed", zap.Error(err))
		return report
	}
	report.Problems = problems
	if len(problems) == 0 {
		return report
	}

	for _, p := range problems {
		s.logger.Warn("category problem",
			zap.String("kind", string(p.Kind)),
			zap.String("id", p.CategoryID),
			zap.String("detail", p.Detail))
	}

	if s.autoRepair {
		repaired, err := s.auditor.Repair(ctx)
		if err != nil {
			s.logger.Error("category repair failed", zap.Error(err))
		}
		report.Repaired = repaired
	}

	s.notifyAdmins(report)
	return report
}

func (s *Scheduler) notifyAdmins(report Report) {
	if s.notify == nil {
		return
	}
	text := formatReport(report)
	for _, chatID := range s.admins {
		if err := s.notify(chatID, text); err != nil {
			s.logger.Error("failed to notify admin", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

func formatReport(report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Catalog audit found %d problem(s):\n", len(report.Problems))
	for _, p := range report.Problems {
		b.WriteString("• " + p.String() + "\n")
	}
	if report.Repaired > 0 {
		fmt.Fprintf(&b, "Rebuilt the index of %d categories.", report.Repaired)
	}
	return strings.TrimRight(b.String(), "\n")
}
