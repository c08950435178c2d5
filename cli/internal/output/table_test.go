package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/clawtop/internal/model"
)

var generated = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleReport() *model.UsageReport {
	heavy := model.NewSessionUsageRecord("alpha", "agent:alpha:main", model.SessionMetadata{
		InputTokens: 120000, OutputTokens: 30000, ContextTokens: 8000, UpdatedAt: generated.Add(-3 * time.Hour),
	})
	heavy.EstimatedCost = 0.6
	light := model.NewSessionUsageRecord("beta", "agent:beta:cron", model.SessionMetadata{InputTokens: 900, OutputTokens: 100})
	light.EstimatedCost = 0.003

	return &model.UsageReport{
		GeneratedAt:        generated,
		TotalAgents:        2,
		TotalSessions:      2,
		TotalInputTokens:   120900,
		TotalOutputTokens:  30100,
		TotalEstimatedCost: 0.603,
		RankedSessions:     []model.SessionUsageRecord{heavy, light},
		Distribution:       model.Distribution{Average: 75500, Median: 1000, P90: 1000, P95: 1000, P99: 1000, Max: 150000},
		TranscriptDetails: map[string]model.TranscriptSummary{
			"agent:alpha:main": {
				SessionKey: "agent:alpha:main", UserMessageCount: 4, AssistantMessageCount: 6, ToolCallCount: 3,
				ToolTypeHistogram: map[string]int{"exec": 2, "read": 1},
			},
		},
		GatewayActivity: &model.GatewayActivitySummary{LogFilesAnalyzed: 3, InferenceRequestCount: 1234, ErrorCount: 2},
		Warnings:        []model.DataCorruptionWarning{{AgentID: "broken", Path: "broken/sessions/sessions.json", Reason: "invalid JSON"}},
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-1,000", FormatNumber(-1000))
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "<$0.01", FormatCost(0))
	assert.Equal(t, "<$0.01", FormatCost(0.0099))
	assert.Equal(t, "$0.01", FormatCost(0.01))
	assert.Equal(t, "$12.35", FormatCost(12.345))
}

func TestFormatRelative(t *testing.T) {
	assert.Equal(t, "-", FormatRelative(time.Time{}, generated))
	assert.Equal(t, "just now", FormatRelative(generated.Add(-10*time.Minute), generated))
	assert.Equal(t, "5h ago", FormatRelative(generated.Add(-5*time.Hour), generated))
	assert.Equal(t, "2d ago", FormatRelative(generated.Add(-50*time.Hour), generated))

	old := generated.AddDate(0, 0, -30)
	assert.Equal(t, old.Local().Format("2006-01-02"), FormatRelative(old, generated))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "agent:a...", truncate("agent:alpha:main", 10))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}

func TestPrintReport_Full(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(), TableOptions{Width: 200})
	out := buf.String()

	assert.Contains(t, out, "Agents analyzed: 2")
	assert.Contains(t, out, "Combined tokens: 151,000")
	assert.Contains(t, out, "Estimated cost: $0.60")
	assert.Contains(t, out, "(showing top 2)")
	assert.Contains(t, out, "Last Active")
	assert.Contains(t, out, "3h ago")
	assert.Contains(t, out, "<$0.01")
	assert.Contains(t, out, "Heaviest session: 150,000 (agent:alpha:main)")
	assert.Contains(t, out, "Average per session: 75,500")
	assert.Contains(t, out, "Messages: 4 user, 6 assistant")
	assert.Contains(t, out, "Top tools: exec(2), read(1)")
	assert.Contains(t, out, "Inference requests: 1,234")
	assert.Contains(t, out, "Errors logged: 2")
	assert.Contains(t, out, "broken: invalid JSON")
	assert.NotContains(t, out, "Compact mode")
}

func TestPrintReport_Compact(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(), TableOptions{ForceCompact: true})
	out := buf.String()

	assert.Contains(t, out, "Compact mode")
	assert.NotContains(t, out, "Last Active")
	assert.Contains(t, out, "agent:alpha:main")
}

func TestPrintReport_NarrowTerminalIsCompact(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(), TableOptions{Width: 80})
	assert.Contains(t, buf.String(), "Compact mode")
}

func TestPrintReport_SingleSessionHasNoDistribution(t *testing.T) {
	r := sampleReport()
	r.TotalSessions = 1
	r.RankedSessions = r.RankedSessions[:1]
	r.GatewayActivity = &model.GatewayActivitySummary{LogFilesAnalyzed: 1}

	var buf bytes.Buffer
	PrintReport(&buf, r, TableOptions{Width: 200})
	out := buf.String()

	assert.NotContains(t, out, "Token Distribution")
	assert.NotContains(t, out, "Errors logged")
}

func TestPrintReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, &model.UsageReport{GeneratedAt: generated, RankedSessions: []model.SessionUsageRecord{}}, TableOptions{})
	assert.Contains(t, buf.String(), "No agents found.")

	buf.Reset()
	PrintReport(&buf, &model.UsageReport{GeneratedAt: generated, TotalAgents: 3, RankedSessions: []model.SessionUsageRecord{}}, TableOptions{})
	assert.Contains(t, buf.String(), "No sessions found matching criteria.")
	assert.NotContains(t, buf.String(), "Top Token Burners")
}

func TestPrintReport_DetailOutsideRanking(t *testing.T) {
	r := sampleReport()
	r.RankedSessions = r.RankedSessions[:1]
	r.TranscriptDetails["agent:beta:cron"] = model.TranscriptSummary{SessionKey: "agent:beta:cron", UserMessageCount: 1}

	var buf bytes.Buffer
	PrintReport(&buf, r, TableOptions{Width: 200})
	assert.Contains(t, buf.String(), "Messages: 1 user, 0 assistant")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 2, decoded["total_sessions"])
	assert.Contains(t, decoded, "ranked_sessions")
	assert.Contains(t, decoded, "gateway_activity")
	assert.NotContains(t, decoded, "since")
}
