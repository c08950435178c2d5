package model

import (
	"fmt"
	"time"
)

// SessionMetadata is a single sessions.json entry as decoded from disk
type SessionMetadata struct {
	SessionID       string
	InputTokens     int64
	OutputTokens    int64
	ContextTokens   int64
	CompactionCount int64
	UpdatedAt       time.Time // zero when the entry carries no usable timestamp
}

// SessionUsageRecord represents token usage for one (agent, session) pair
type SessionUsageRecord struct {
	AgentID         string    `json:"agent_id"`
	SessionKey      string    `json:"session_key"`
	SessionID       string    `json:"session_id"`
	InputTokens     int64     `json:"input_tokens"`
	OutputTokens    int64     `json:"output_tokens"`
	TotalTokens     int64     `json:"total_tokens"`
	ContextTokens   int64     `json:"context_tokens"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
	CompactionCount int64     `json:"compaction_count"`
	EstimatedCost   float64   `json:"estimated_cost"`
}

// NewSessionUsageRecord builds a record from raw metadata. TotalTokens is always
// InputTokens + OutputTokens; negative counts are clamped to zero.
func NewSessionUsageRecord(agentID, sessionKey string, meta SessionMetadata) SessionUsageRecord {
	input := nonNegative(meta.InputTokens)
	output := nonNegative(meta.OutputTokens)
	return SessionUsageRecord{
		AgentID:         agentID,
		SessionKey:      sessionKey,
		SessionID:       meta.SessionID,
		InputTokens:     input,
		OutputTokens:    output,
		TotalTokens:     input + output,
		ContextTokens:   nonNegative(meta.ContextTokens),
		UpdatedAt:       meta.UpdatedAt,
		CompactionCount: nonNegative(meta.CompactionCount),
	}
}

// OlderThan reports whether the record was last updated before cutoff.
// Records without a timestamp are never considered stale.
func (r SessionUsageRecord) OlderThan(cutoff time.Time) bool {
	if r.UpdatedAt.IsZero() || cutoff.IsZero() {
		return false
	}
	return r.UpdatedAt.Before(cutoff)
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// TranscriptSummary tallies messages and tool calls found in a session transcript
type TranscriptSummary struct {
	SessionKey            string         `json:"session_key"`
	UserMessageCount      int            `json:"user_message_count"`
	AssistantMessageCount int            `json:"assistant_message_count"`
	ToolCallCount         int            `json:"tool_call_count"`
	ToolTypeHistogram     map[string]int `json:"tool_type_histogram"`
}

// GatewayActivitySummary holds request and error counts from recent gateway logs
type GatewayActivitySummary struct {
	LogFilesAnalyzed      int `json:"log_files_analyzed"`
	InferenceRequestCount int `json:"inference_request_count"`
	ErrorCount            int `json:"error_count"`
}

// Distribution holds summary statistics over per-session total tokens.
//
// Median and the percentiles index into the descending ranking at
// floor(n*fraction), so P99 sits near the low end of the distribution.
type Distribution struct {
	Average float64 `json:"average"`
	Median  int64   `json:"median"`
	P90     int64   `json:"p90"`
	P95     int64   `json:"p95"`
	P99     int64   `json:"p99"`
	Max     int64   `json:"max"`
}

// Pricing is a flat per-million-token price used for cost estimates (not per model)
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
}

// DataCorruptionWarning reports an agent whose session metadata could not be read or parsed
type DataCorruptionWarning struct {
	AgentID string `json:"agent_id"`
	Path    string `json:"path"`
	Reason  string `json:"reason"`
}

func (w DataCorruptionWarning) Error() string {
	return fmt.Sprintf("agent %s: %s: %s", w.AgentID, w.Path, w.Reason)
}

// UsageReport is the result of one report run
type UsageReport struct {
	GeneratedAt        time.Time                    `json:"generated_at"`
	Since              time.Time                    `json:"since,omitzero"`
	TotalAgents        int                          `json:"total_agents"`
	TotalSessions      int                          `json:"total_sessions"`
	TotalInputTokens   int64                        `json:"total_input_tokens"`
	TotalOutputTokens  int64                        `json:"total_output_tokens"`
	TotalEstimatedCost float64                      `json:"total_estimated_cost"`
	RankedSessions     []SessionUsageRecord         `json:"ranked_sessions"`
	Distribution       Distribution                 `json:"distribution"`
	TranscriptDetails  map[string]TranscriptSummary `json:"transcript_details,omitempty"`
	GatewayActivity    *GatewayActivitySummary      `json:"gateway_activity,omitempty"`
	Warnings           []DataCorruptionWarning      `json:"warnings,omitempty"`
}

// TotalTokens returns combined input and output tokens across all sessions
func (r *UsageReport) TotalTokens() int64 {
	return r.TotalInputTokens + r.TotalOutputTokens
}
