// Package transcript summarizes a session's event log: message counts by role
// and tool invocations by tool name.
package transcript

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/parser"
)

// UnknownTool buckets tool invocations that carry no function name
const UnknownTool = "unknown"

// ToolCount is one histogram entry
type ToolCount struct {
	Name  string
	Count int
}

// Summarize reads the transcript at name in fsys. A missing transcript is not
// an error and yields an empty summary.
func Summarize(ctx context.Context, fsys fs.FS, name string) (model.TranscriptSummary, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newSummary(), nil
		}
		return model.TranscriptSummary{}, err
	}
	defer f.Close()

	return SummarizeReader(ctx, f)
}

// SummarizeReader streams transcript events from r. Lines that are not valid
// JSON are skipped without touching any counter.
func SummarizeReader(ctx context.Context, r io.Reader) (model.TranscriptSummary, error) {
	summary := newSummary()

	err := parser.ForEachLine(ctx, r, func(line []byte) {
		if !gjson.ValidBytes(line) {
			return
		}
		event := gjson.ParseBytes(line)
		if !event.IsObject() {
			return
		}

		if event.Get("type").String() == "message" {
			switch event.Get("role").String() {
			case "user":
				summary.UserMessageCount++
			case "assistant":
				summary.AssistantMessageCount++
			}
		}

		calls := event.Get("tool_calls")
		if !calls.IsArray() {
			return
		}
		calls.ForEach(func(_, call gjson.Result) bool {
			summary.ToolCallCount++
			name := call.Get("function.name").String()
			if name == "" {
				name = UnknownTool
			}
			summary.ToolTypeHistogram[name]++
			return true
		})
	})
	if err != nil {
		return model.TranscriptSummary{}, err
	}

	return summary, nil
}

// TopTools returns up to n histogram entries ordered by count, most used
// first, then by name. n <= 0 returns every entry.
func TopTools(summary model.TranscriptSummary, n int) []ToolCount {
	tools := make([]ToolCount, 0, len(summary.ToolTypeHistogram))
	for name, count := range summary.ToolTypeHistogram {
		tools = append(tools, ToolCount{Name: name, Count: count})
	}

	sort.Slice(tools, func(i, j int) bool {
		if tools[i].Count != tools[j].Count {
			return tools[i].Count > tools[j].Count
		}
		return tools[i].Name < tools[j].Name
	})

	if n > 0 && len(tools) > n {
		tools = tools[:n]
	}
	return tools
}

func newSummary() model.TranscriptSummary {
	return model.TranscriptSummary{ToolTypeHistogram: make(map[string]int)}
}
