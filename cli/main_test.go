package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/clawtop/internal/pricing"
)

func parseReportFlags(t *testing.T, args ...string) (*reportFlags, *flag.FlagSet) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var rf reportFlags
	rf.register(fs)
	require.NoError(t, fs.Parse(args))
	return &rf, fs
}

func TestReportFlags_OverrideOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawtop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: 5\ndays: 3\nworkers: 8\n"), 0600))

	rf, fs := parseReportFlags(t, "--config", path, "--limit", "0", "--detail", "--agents-dir", "/data/agents")
	cfg, got, err := rf.load(fs)
	require.NoError(t, err)

	assert.Equal(t, path, got)
	assert.Equal(t, 0, cfg.Limit)
	assert.True(t, cfg.Detail)
	assert.Equal(t, "/data/agents", cfg.AgentsDir)
	assert.Equal(t, 3, cfg.Days)
	assert.Equal(t, 8, cfg.Workers)
}

func TestReportFlags_InvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawtop.yaml")
	rf, fs := parseReportFlags(t, "--config", path, "--days", "-2")

	_, _, err := rf.load(fs)
	assert.ErrorContains(t, err, "days")
}

func TestReportOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawtop.yaml")
	rf, fs := parseReportFlags(t, "--config", path, "--days", "2")
	cfg, _, err := rf.load(fs)
	require.NoError(t, err)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	opts := reportOptions(cfg, pricing.DefaultPricing, now)

	assert.Equal(t, now.Add(-48*time.Hour), opts.Since)
	assert.Equal(t, 20, opts.Limit)
	assert.Equal(t, 5, opts.DetailSessions)
	assert.Equal(t, 3, opts.GatewayLookback)
	assert.Equal(t, pricing.DefaultPricing, opts.Pricing)
}

func TestMonitorOptions_RankAllSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawtop.yaml")
	rf, fs := parseReportFlags(t, "--config", path, "--limit", "5")
	cfg, _, err := rf.load(fs)
	require.NoError(t, err)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, reportOptions(cfg, pricing.DefaultPricing, now).Limit)
	assert.Zero(t, monitorOptions(cfg, pricing.DefaultPricing, now).Limit)
}
