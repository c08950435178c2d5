package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/zhaobenny/clawtop/internal/model"
)

// DecodeSessions parses a sessions.json document: a JSON object keyed by
// session key. Entries that are not objects are skipped. Numeric fields that
// are missing or hold anything other than a JSON number count as zero, so one
// odd entry never costs the agent its other sessions. totalTokens is ignored
// and recomputed from input + output.
func DecodeSessions(data []byte) (map[string]model.SessionMetadata, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	if entries == nil {
		return nil, fmt.Errorf("decode sessions: document is not an object")
	}

	sessions := make(map[string]model.SessionMetadata, len(entries))
	for key, raw := range entries {
		if !isObject(raw) {
			continue
		}

		entry := gjson.ParseBytes(raw)
		meta := model.SessionMetadata{
			InputTokens:     toCount(number(entry, "inputTokens")),
			OutputTokens:    toCount(number(entry, "outputTokens")),
			ContextTokens:   toCount(number(entry, "contextTokens")),
			CompactionCount: toCount(number(entry, "compactionCount")),
		}
		if id := entry.Get("sessionId"); id.Type == gjson.String {
			meta.SessionID = id.Str
		}
		// updatedAt is epoch milliseconds
		if updated := number(entry, "updatedAt"); updated > 0 {
			meta.UpdatedAt = time.UnixMilli(int64(updated))
		}
		sessions[key] = meta
	}

	return sessions, nil
}

// number returns the field at path if it is a JSON number, otherwise 0
func number(entry gjson.Result, path string) float64 {
	if v := entry.Get(path); v.Type == gjson.Number {
		return v.Num
	}
	return 0
}

func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// toCount converts a JSON number into a non-negative token count
func toCount(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
