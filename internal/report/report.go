// Package report builds a UsageReport from an agents directory and optional
// gateway logs.
//
// The pipeline is: load every agent's session metadata, rank and summarize
// the records, inspect the transcripts of the heaviest sessions, then fold in
// recent gateway activity. Each stage runs its file I/O on a bounded worker
// pool; cancelling the context abandons the run and no partial report is
// returned.
package report

import (
	"context"
	"io/fs"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhaobenny/clawtop/internal/aggregator"
	"github.com/zhaobenny/clawtop/internal/gateway"
	"github.com/zhaobenny/clawtop/internal/loader"
	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/transcript"
)

const (
	DefaultDetailSessions = 5
	DefaultWorkers        = 4
)

// Options control a single report run
type Options struct {
	Since           time.Time // zero means all time
	Pricing         model.Pricing
	Limit           int  // max ranked sessions in the report, 0 for all
	Detail          bool // inspect transcripts of the top sessions
	DetailSessions  int  // how many top sessions to inspect
	GatewayLookback int
	Workers         int
}

// Builder wires the report sources together
type Builder struct {
	// Agents is rooted at the agents directory; AgentsRoot only labels errors
	Agents     fs.FS
	AgentsRoot string

	// Logs is rooted at the gateway log directory; nil skips gateway activity
	Logs       fs.FS
	Classifier gateway.Classifier

	Log log.FieldLogger
	Now func() time.Time
}

// Build runs the whole pipeline. Only an unusable agents root or a
// cancelled context return an error.
func (b *Builder) Build(ctx context.Context, opts Options) (*model.UsageReport, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	loaded, err := loader.Load(ctx, b.Agents, loader.Options{
		Root:    b.AgentsRoot,
		Since:   opts.Since,
		Pricing: opts.Pricing,
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}
	for _, w := range loaded.Warnings {
		b.logger().WithFields(log.Fields{"agent": w.AgentID, "path": w.Path}).Warnf("skipping agent: %s", w.Reason)
	}

	ranked := aggregator.Rank(loaded.Records)
	totals := aggregator.CalculateTotals(ranked)

	report := &model.UsageReport{
		GeneratedAt:        b.now(),
		Since:              opts.Since,
		TotalAgents:        loaded.Agents,
		TotalSessions:      totals.Sessions,
		TotalInputTokens:   totals.InputTokens,
		TotalOutputTokens:  totals.OutputTokens,
		TotalEstimatedCost: totals.EstimatedCost,
		Distribution:       aggregator.Distribution(ranked),
		Warnings:           loaded.Warnings,
	}

	if opts.Detail {
		n := opts.DetailSessions
		if n <= 0 {
			n = DefaultDetailSessions
		}
		details, err := b.inspectTranscripts(ctx, aggregator.Top(ranked, n), workers)
		if err != nil {
			return nil, err
		}
		report.TranscriptDetails = details
	}

	if b.Logs != nil {
		agg := gateway.Aggregator{Classifier: b.Classifier, Workers: workers, Log: b.logger()}
		activity, err := agg.Aggregate(ctx, b.Logs, opts.GatewayLookback)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			b.logger().WithError(err).Warn("gateway log: aggregation failed")
		}
		report.GatewayActivity = activity
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.RankedSessions = aggregator.Top(ranked, opts.Limit)
	if report.RankedSessions == nil {
		report.RankedSessions = []model.SessionUsageRecord{}
	}

	return report, nil
}

// inspectTranscripts summarizes each session's transcript concurrently. A
// session whose transcript cannot be read is left out of the result.
func (b *Builder) inspectTranscripts(ctx context.Context, sessions []model.SessionUsageRecord, workers int) (map[string]model.TranscriptSummary, error) {
	summaries := make([]*model.TranscriptSummary, len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, session := range sessions {
		g.Go(func() error {
			name := loader.TranscriptPath(session.AgentID, session.SessionID)
			summary, err := transcript.Summarize(gctx, b.Agents, name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger().WithError(err).WithFields(log.Fields{
					"agent":   session.AgentID,
					"session": session.SessionKey,
				}).Warn("transcript: skipping unreadable transcript")
				return nil
			}
			summary.SessionKey = session.SessionKey
			summaries[i] = &summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := make(map[string]model.TranscriptSummary, len(sessions))
	for _, s := range summaries {
		if s == nil {
			continue
		}
		// Keys can repeat across agents; the heavier session wins
		if _, ok := details[s.SessionKey]; !ok {
			details[s.SessionKey] = *s
		}
	}

	return details, nil
}

func (b *Builder) logger() log.FieldLogger {
	if b.Log != nil {
		return b.Log
	}
	return log.StandardLogger()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
