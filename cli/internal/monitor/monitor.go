// Package monitor runs the usage report on a fixed interval as a background
// service and logs sessions that cross a token budget.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhaobenny/clawtop/internal/model"
)

const (
	DefaultInterval    = time.Hour
	DefaultAlertTokens = 100_000

	// unreadable agents tend to stay unreadable, so repeat the warning at most this often
	corruptionWarnInterval = 6 * time.Hour
)

// BuildFunc produces a fresh report for one audit run
type BuildFunc func(ctx context.Context) (*model.UsageReport, error)

// Monitor implements service.Interface for background auditing
type Monitor struct {
	Build       BuildFunc
	Interval    time.Duration
	AlertTokens int64
	Log         log.FieldLogger

	corruption rate.Sometimes
	cancel     context.CancelFunc
	done       chan struct{}
}

// New returns a monitor with defaults applied to zero settings
func New(build BuildFunc, interval time.Duration, alertTokens int64, logger log.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if alertTokens <= 0 {
		alertTokens = DefaultAlertTokens
	}
	return &Monitor{
		Build:       build,
		Interval:    interval,
		AlertTokens: alertTokens,
		Log:         logger,
		corruption:  rate.Sometimes{First: 1, Interval: corruptionWarnInterval},
	}
}

func (m *Monitor) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		m.Run(ctx)
	}()
	return nil
}

func (m *Monitor) Stop(s service.Service) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}

// Run audits immediately, then once per interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	m.RunOnce(ctx)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce builds one report and logs a summary plus an alert for each
// ranked session above AlertTokens. It returns the alerted sessions.
// Only RankedSessions are checked, so Build should not apply a display limit.
func (m *Monitor) RunOnce(ctx context.Context) ([]model.SessionUsageRecord, error) {
	report, err := m.Build(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger().WithError(err).Error("monitor: report failed")
		}
		return nil, err
	}

	m.logger().WithFields(log.Fields{
		"agents":   report.TotalAgents,
		"sessions": report.TotalSessions,
		"tokens":   report.TotalTokens(),
		"cost":     report.TotalEstimatedCost,
	}).Info("monitor: usage audit complete")

	if len(report.Warnings) > 0 {
		m.corruption.Do(func() {
			agents := make([]string, len(report.Warnings))
			for i, w := range report.Warnings {
				agents[i] = w.AgentID
			}
			m.logger().WithField("agents", agents).Warn("monitor: agents with unreadable session data")
		})
	}

	var alerts []model.SessionUsageRecord
	for _, s := range report.RankedSessions {
		// ranked heaviest first
		if s.TotalTokens <= m.AlertTokens {
			break
		}
		alerts = append(alerts, s)
		m.logger().WithFields(log.Fields{
			"agent":   s.AgentID,
			"session": s.SessionKey,
			"tokens":  s.TotalTokens,
			"limit":   m.AlertTokens,
		}).Warn("monitor: session over token budget")
	}

	return alerts, nil
}

func (m *Monitor) logger() log.FieldLogger {
	if m.Log != nil {
		return m.Log
	}
	return log.StandardLogger()
}

// NewFileLogger returns a logger writing JSON lines to a size-rotated file
func NewFileLogger(path string) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	return logger
}
