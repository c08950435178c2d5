package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/transcript"
)

const (
	defaultWidth = 120
	topTools     = 5

	rankWidth    = 4
	sessionWidth = 40
	numberWidth  = 10
	costWidth    = 8
	activeWidth  = 12

	compactSessionWidth = 24
)

// fullWidth is the length of a row in the full table
const fullWidth = rankWidth + 1 + sessionWidth + 4*(1+numberWidth) + 1 + costWidth + 1 + activeWidth

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
	Width        int       // terminal width, 0 to detect
	Now          time.Time // reference for "Last Active", zero for the report time
}

// getTerminalWidth returns the current terminal width
func getTerminalWidth() int {
	// Check COLUMNS env var first
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if width, err := strconv.Atoi(cols); err == nil && width > 0 {
			return width
		}
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	return defaultWidth
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	width := opts.Width
	if width <= 0 {
		width = getTerminalWidth()
	}
	return width < fullWidth
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatCost formats a cost value as currency. Anything under a cent is shown as <$0.01.
func FormatCost(cost float64) string {
	if cost < 0.01 {
		return "<$0.01"
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatRelative describes how long ago t was, relative to now
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	hours := int(now.Sub(t).Hours())
	switch {
	case hours < 1:
		return "just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case hours < 7*24:
		return fmt.Sprintf("%dd ago", hours/24)
	default:
		return t.Local().Format("2006-01-02")
	}
}

// truncate shortens s to n runes, marking the cut with "..."
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// PrintReport renders a usage report as text tables
func PrintReport(w io.Writer, r *model.UsageReport, opts TableOptions) {
	st := newStyles(w)
	compact := shouldUseCompact(opts)
	now := opts.Now
	if now.IsZero() {
		now = r.GeneratedAt
	}

	ruleWidth := fullWidth
	if compact {
		ruleWidth = rankWidth + 1 + compactSessionWidth + 1 + numberWidth + 1 + costWidth
	}
	rule := st.rule.Render(strings.Repeat("─", ruleWidth))

	fmt.Fprintln(w, st.title.Render("Token Usage Report"))
	fmt.Fprintln(w, rule)

	if r.TotalAgents == 0 {
		fmt.Fprintln(w, st.warm.Render("No agents found."))
		printWarnings(w, st, r.Warnings)
		return
	}

	fmt.Fprintf(w, "\n%s\n", st.title.Render("Summary"))
	fmt.Fprintf(w, "   Agents analyzed: %s\n", st.count.Render(strconv.Itoa(r.TotalAgents)))
	fmt.Fprintf(w, "   Total sessions: %s\n", st.count.Render(strconv.Itoa(r.TotalSessions)))
	fmt.Fprintf(w, "   Total input tokens: %s\n", st.token.Render(FormatNumber(r.TotalInputTokens)))
	fmt.Fprintf(w, "   Total output tokens: %s\n", st.token.Render(FormatNumber(r.TotalOutputTokens)))
	fmt.Fprintf(w, "   Combined tokens: %s\n", st.title.Render(FormatNumber(r.TotalTokens())))
	fmt.Fprintf(w, "   Estimated cost: %s\n", st.cost.Render(FormatCost(r.TotalEstimatedCost)))
	if !r.Since.IsZero() {
		fmt.Fprintf(w, "   Active since: %s\n", r.Since.Local().Format("2006-01-02 15:04"))
	}

	if len(r.RankedSessions) == 0 {
		fmt.Fprintf(w, "\n%s\n", st.warm.Render("No sessions found matching criteria."))
		printWarnings(w, st, r.Warnings)
		return
	}

	fmt.Fprintf(w, "\n%s (showing top %d)\n", st.title.Render("Top Token Burners"), len(r.RankedSessions))
	fmt.Fprintln(w, rule)
	if compact {
		printCompactRows(w, st, r.RankedSessions)
	} else {
		printFullRows(w, st, r.RankedSessions, now)
	}
	fmt.Fprintln(w, rule)
	if compact {
		fmt.Fprintln(w, "(Compact mode - expand terminal for full view)")
	}

	if r.TotalSessions > 1 {
		printDistribution(w, st, r)
	}
	if len(r.TranscriptDetails) > 0 {
		printTranscripts(w, st, r)
	}
	if r.GatewayActivity != nil {
		printGateway(w, st, r.GatewayActivity)
	}
	printWarnings(w, st, r.Warnings)
}

func printFullRows(w io.Writer, st styles, sessions []model.SessionUsageRecord, now time.Time) {
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%-*s %-*s %*s %*s %*s %*s %*s %*s",
		rankWidth, "Rank", sessionWidth, "Session",
		numberWidth, "Input", numberWidth, "Output", numberWidth, "Total", numberWidth, "Context",
		costWidth, "Cost", activeWidth, "Last Active")))

	for i, s := range sessions {
		total := st.total(s.TotalTokens).Render(fmt.Sprintf("%*s", numberWidth, FormatNumber(s.TotalTokens)))
		fmt.Fprintf(w, "%-*d %-*s %*s %*s %s %*s %*s %*s\n",
			rankWidth, i+1,
			sessionWidth, truncate(s.SessionKey, sessionWidth-3),
			numberWidth, FormatNumber(s.InputTokens),
			numberWidth, FormatNumber(s.OutputTokens),
			total,
			numberWidth, FormatNumber(s.ContextTokens),
			costWidth, FormatCost(s.EstimatedCost),
			activeWidth, FormatRelative(s.UpdatedAt, now))
	}
}

func printCompactRows(w io.Writer, st styles, sessions []model.SessionUsageRecord) {
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%-*s %-*s %*s %*s",
		rankWidth, "Rank", compactSessionWidth, "Session", numberWidth, "Total", costWidth, "Cost")))

	for i, s := range sessions {
		total := st.total(s.TotalTokens).Render(fmt.Sprintf("%*s", numberWidth, FormatNumber(s.TotalTokens)))
		fmt.Fprintf(w, "%-*d %-*s %s %*s\n",
			rankWidth, i+1,
			compactSessionWidth, truncate(s.SessionKey, compactSessionWidth),
			total,
			costWidth, FormatCost(s.EstimatedCost))
	}
}

func printDistribution(w io.Writer, st styles, r *model.UsageReport) {
	d := r.Distribution
	fmt.Fprintf(w, "\n%s\n", st.title.Render("Token Distribution"))
	fmt.Fprintf(w, "   Average per session: %s\n", st.count.Render(FormatNumber(int64(math.Round(d.Average)))))
	fmt.Fprintf(w, "   Median per session: %s\n", st.count.Render(FormatNumber(d.Median)))
	fmt.Fprintf(w, "   Heaviest session: %s (%s)\n", st.hot.Render(FormatNumber(d.Max)), r.RankedSessions[0].SessionKey)
	fmt.Fprintf(w, "   90th percentile: %s\n", st.count.Render(FormatNumber(d.P90)))
	fmt.Fprintf(w, "   95th percentile: %s\n", st.count.Render(FormatNumber(d.P95)))
	fmt.Fprintf(w, "   99th percentile: %s\n", st.count.Render(FormatNumber(d.P99)))
}

// printTranscripts lists details in ranking order, then any inspected
// sessions that fell outside the printed ranking
func printTranscripts(w io.Writer, st styles, r *model.UsageReport) {
	fmt.Fprintf(w, "\n%s\n", st.title.Render("Detailed Analysis (Top Sessions)"))

	printed := make(map[string]bool, len(r.TranscriptDetails))
	for _, s := range r.RankedSessions {
		summary, ok := r.TranscriptDetails[s.SessionKey]
		if !ok || printed[s.SessionKey] {
			continue
		}
		printed[s.SessionKey] = true
		fmt.Fprintf(w, "\n   %s (%s tokens)\n", st.title.Render(truncate(s.SessionKey, 40)), FormatNumber(s.TotalTokens))
		printSummary(w, summary)
	}

	var rest []string
	for key := range r.TranscriptDetails {
		if !printed[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(w, "\n   %s\n", st.title.Render(truncate(key, 40)))
		printSummary(w, r.TranscriptDetails[key])
	}
}

func printSummary(w io.Writer, s model.TranscriptSummary) {
	fmt.Fprintf(w, "   └─ Messages: %d user, %d assistant\n", s.UserMessageCount, s.AssistantMessageCount)
	fmt.Fprintf(w, "   └─ Tool calls: %d\n", s.ToolCallCount)

	tools := transcript.TopTools(s, topTools)
	if len(tools) == 0 {
		return
	}
	parts := make([]string, len(tools))
	for i, t := range tools {
		parts[i] = fmt.Sprintf("%s(%d)", t.Name, t.Count)
	}
	fmt.Fprintf(w, "   └─ Top tools: %s\n", strings.Join(parts, ", "))
}

func printGateway(w io.Writer, st styles, g *model.GatewayActivitySummary) {
	fmt.Fprintf(w, "\n%s\n", st.title.Render("Recent Gateway Activity"))
	fmt.Fprintf(w, "   Log files analyzed: %d\n", g.LogFilesAnalyzed)
	fmt.Fprintf(w, "   Inference requests: %s\n", st.count.Render(FormatNumber(int64(g.InferenceRequestCount))))
	if g.ErrorCount > 0 {
		fmt.Fprintf(w, "   Errors logged: %s\n", st.err.Render(FormatNumber(int64(g.ErrorCount))))
	}
}

func printWarnings(w io.Writer, st styles, warnings []model.DataCorruptionWarning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", st.warm.Render(fmt.Sprintf("Skipped %d agent(s) with unreadable session data", len(warnings))))
	for _, warn := range warnings {
		fmt.Fprintf(w, "   %s: %s (%s)\n", warn.AgentID, warn.Reason, warn.Path)
	}
}

// PrintJSON outputs the report as indented JSON
func PrintJSON(w io.Writer, r *model.UsageReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
