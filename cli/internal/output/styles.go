package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Token thresholds for coloring a session's total
const (
	hotTokens  = 100_000
	warmTokens = 50_000
)

var (
	red   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	green = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	cyan  = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	muted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// styles are bound to one writer so color is only emitted to terminals
type styles struct {
	plain lipgloss.Style
	title lipgloss.Style
	rule  lipgloss.Style
	count lipgloss.Style
	token lipgloss.Style
	cost  lipgloss.Style
	hot   lipgloss.Style
	warm  lipgloss.Style
	err   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		plain: r.NewStyle(),
		title: r.NewStyle().Bold(true),
		rule:  r.NewStyle().Foreground(muted),
		count: r.NewStyle().Foreground(cyan),
		token: r.NewStyle().Foreground(green),
		cost:  r.NewStyle().Foreground(amber),
		hot:   r.NewStyle().Foreground(red),
		warm:  r.NewStyle().Foreground(amber),
		err:   r.NewStyle().Foreground(red),
	}
}

// total picks the style for a session total: red above 100k, amber above 50k
func (s styles) total(tokens int64) lipgloss.Style {
	switch {
	case tokens > hotTokens:
		return s.hot
	case tokens > warmTokens:
		return s.warm
	default:
		return s.plain
	}
}
