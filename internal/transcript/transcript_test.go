package transcript

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/clawtop/internal/model"
)

var validLines = []string{
	`{"type":"session","version":3}`,
	`{"type":"message","role":"user","content":"hi"}`,
	`{"type":"message","role":"assistant","tool_calls":[{"function":{"name":"exec"}},{"function":{"name":"read"}}]}`,
	`{"type":"message","role":"tool","content":"ok"}`,
	`{"type":"message","role":"assistant","tool_calls":[{"function":{"name":"exec"}},{"id":"call_3"}]}`,
	`{"type":"message","role":"system"}`,
	`{"type":"message","role":"user"}`,
}

func summarize(t *testing.T, content string) model.TranscriptSummary {
	t.Helper()
	summary, err := SummarizeReader(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	return summary
}

func TestSummarizeReader(t *testing.T) {
	summary := summarize(t, strings.Join(validLines, "\n"))

	assert.Equal(t, 2, summary.UserMessageCount)
	assert.Equal(t, 2, summary.AssistantMessageCount)
	assert.Equal(t, 4, summary.ToolCallCount)
	assert.Equal(t, map[string]int{"exec": 2, "read": 1, UnknownTool: 1}, summary.ToolTypeHistogram)
}

func TestSummarizeReader_MalformedLinesIgnored(t *testing.T) {
	garbage := []string{
		`{"type":"message","role":"user"`,
		`not json at all`,
		`{"type":"message","role":"assistant","tool_calls":[{"function":{"name":"exec"}}`,
		`]]]`,
	}

	var mixed []string
	for i, line := range validLines {
		mixed = append(mixed, line)
		if i < len(garbage) {
			mixed = append(mixed, garbage[i])
		}
	}

	clean := summarize(t, strings.Join(validLines, "\n"))
	dirty := summarize(t, strings.Join(mixed, "\n"))
	assert.Equal(t, clean, dirty)
}

func TestSummarizeReader_NonObjectAndOddShapes(t *testing.T) {
	summary := summarize(t, strings.Join([]string{
		`42`,
		`null`,
		`["type","message"]`,
		`{"type":"message","role":"user","tool_calls":{"function":{"name":"exec"}}}`,
		`{"tool_calls":[]}`,
		`{"tool_calls":[{"function":{"name":""}}]}`,
	}, "\n"))

	assert.Equal(t, 1, summary.UserMessageCount)
	assert.Equal(t, 1, summary.ToolCallCount)
	assert.Equal(t, map[string]int{UnknownTool: 1}, summary.ToolTypeHistogram)
}

func TestSummarize_MissingFile(t *testing.T) {
	summary, err := Summarize(context.Background(), fstest.MapFS{}, "main/sessions/nope.jsonl")
	require.NoError(t, err)
	assert.Zero(t, summary.UserMessageCount)
	assert.Zero(t, summary.AssistantMessageCount)
	assert.Zero(t, summary.ToolCallCount)
	assert.Empty(t, summary.ToolTypeHistogram)
}

func TestSummarize_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"main/sessions/abc.jsonl": &fstest.MapFile{Data: []byte(strings.Join(validLines, "\n") + "\n")},
	}

	summary, err := Summarize(context.Background(), fsys, "main/sessions/abc.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ToolCallCount)
}

func TestSummarize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SummarizeReader(ctx, strings.NewReader(strings.Join(validLines, "\n")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopTools(t *testing.T) {
	summary := model.TranscriptSummary{ToolTypeHistogram: map[string]int{
		"exec": 5, "read": 5, "write": 2, "browser": 9, "web_search": 1, "edit": 2,
	}}

	top := TopTools(summary, 5)
	require.Len(t, top, 5)
	assert.Equal(t, []ToolCount{
		{Name: "browser", Count: 9},
		{Name: "exec", Count: 5},
		{Name: "read", Count: 5},
		{Name: "edit", Count: 2},
		{Name: "write", Count: 2},
	}, top)

	assert.Len(t, TopTools(summary, 0), 6)
	assert.Empty(t, TopTools(model.TranscriptSummary{}, 3))
}
