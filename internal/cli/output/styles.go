package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	TableName lipgloss.Style
	Category  lipgloss.Style
	ID        lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header1:   r.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12")),
		Header2:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     r.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		TableName: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Category:  r.NewStyle().Foreground(lipgloss.Color("13")),
		ID:        r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
