// Package loader reads per-agent session metadata and normalizes it into
// session usage records.
//
// The agents directory is supplied as an fs.FS so that callers decide where
// the data lives: os.DirFS in production, fstest.MapFS in tests.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/parser"
	"github.com/zhaobenny/clawtop/internal/pricing"
)

const (
	sessionsDir    = "sessions"
	sessionsFile   = "sessions.json"
	defaultWorkers = 4
)

// ConfigurationError is returned when the agents root itself is unusable.
// Nothing can be reported in that case.
type ConfigurationError struct {
	Root string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("agents directory %s: %v", e.Root, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Options for loading
type Options struct {
	// Root is only used to label errors; files are always read through fsys.
	Root    string
	Since   time.Time // zero disables time filtering
	Pricing model.Pricing
	Workers int
}

// Result holds everything loaded from the agents directory
type Result struct {
	Agents   int
	Records  []model.SessionUsageRecord
	Warnings []model.DataCorruptionWarning
}

// MetadataPath returns the sessions.json location for an agent, relative to the agents root
func MetadataPath(agentID string) string {
	return path.Join(agentID, sessionsDir, sessionsFile)
}

// TranscriptPath returns the transcript location for a session, relative to the agents root
func TranscriptPath(agentID, sessionID string) string {
	return path.Join(agentID, sessionsDir, sessionID+".jsonl")
}

type agentResult struct {
	records []model.SessionUsageRecord
	warning *model.DataCorruptionWarning
}

// Load reads every agent's sessions.json under fsys.
//
// A missing root is a *ConfigurationError. A missing sessions.json means the
// agent has no sessions; an unreadable or corrupt one produces a warning and
// the agent is skipped. Agents are loaded concurrently; the records come back
// in agent-name order.
func Load(ctx context.Context, fsys fs.FS, opts Options) (*Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	info, err := fs.Stat(fsys, ".")
	if err != nil {
		return nil, &ConfigurationError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ConfigurationError{Root: root, Err: errors.New("not a directory")}
	}

	agents, err := listAgents(fsys)
	if err != nil {
		return nil, &ConfigurationError{Root: root, Err: err}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]agentResult, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, agentID := range agents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = loadAgent(fsys, agentID, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Agents: len(agents)}
	for _, r := range results {
		result.Records = append(result.Records, r.records...)
		if r.warning != nil {
			result.Warnings = append(result.Warnings, *r.warning)
		}
	}

	return result, nil
}

// listAgents returns the sorted names of all agent directories
func listAgents(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var agents []string
	for _, entry := range entries {
		if entry.IsDir() {
			agents = append(agents, entry.Name())
			continue
		}
		// Follow symlinked agent directories
		if entry.Type()&fs.ModeSymlink != 0 {
			if info, err := fs.Stat(fsys, entry.Name()); err == nil && info.IsDir() {
				agents = append(agents, entry.Name())
			}
		}
	}
	sort.Strings(agents)

	return agents, nil
}

func loadAgent(fsys fs.FS, agentID string, opts Options) agentResult {
	metaPath := MetadataPath(agentID)

	data, err := fs.ReadFile(fsys, metaPath)
	if err != nil {
		// a regular file named "sessions" means the agent has no sessions either
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return agentResult{}
		}
		return agentResult{warning: &model.DataCorruptionWarning{
			AgentID: agentID,
			Path:    metaPath,
			Reason:  err.Error(),
		}}
	}

	sessions, err := parser.DecodeSessions(data)
	if err != nil {
		return agentResult{warning: &model.DataCorruptionWarning{
			AgentID: agentID,
			Path:    metaPath,
			Reason:  err.Error(),
		}}
	}

	keys := make([]string, 0, len(sessions))
	for key := range sessions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]model.SessionUsageRecord, 0, len(keys))
	for _, key := range keys {
		record := model.NewSessionUsageRecord(agentID, key, sessions[key])
		if record.OlderThan(opts.Since) {
			continue
		}
		record.EstimatedCost = pricing.EstimateCost(record.InputTokens, record.OutputTokens, opts.Pricing)
		records = append(records, record)
	}

	return agentResult{records: records}
}
