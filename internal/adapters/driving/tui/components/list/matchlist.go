// Package list provides the navigable match list for the match browser.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// MatchList displays nearest-neighbour matches, closest first.
type MatchList struct {
	matches  []domain.MatchResult
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewMatchList creates an empty match list.
func NewMatchList(s *styles.Styles) *MatchList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &MatchList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (l *MatchList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *MatchList) Update(msg tea.Msg) (*MatchList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the visible window of matches.
func (l *MatchList) View() string {
	if len(l.matches) == 0 {
		return l.styles.Muted.Render("No matches")
	}

	hard := 0
	for i := range l.matches {
		if l.matches[i].Strength == domain.MatchHard {
			hard++
		}
	}

	lines := make([]string, 0, len(l.matches)*2+2)
	header := fmt.Sprintf("Matches (%d, %d hard)", len(l.matches), hard)
	lines = append(lines, l.styles.Subtitle.Render(header), "")

	// Each match takes two lines.
	visibleCount := (l.height - 2) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(l.matches) {
		end = len(l.matches)
	}

	for i := start; i < end; i++ {
		lines = append(lines, l.renderMatch(i, &l.matches[i]))
	}

	return strings.Join(lines, "\n")
}

func (l *MatchList) renderMatch(index int, m *domain.MatchResult) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	title := m.Title
	if title == "" {
		title = "(untitled)"
	}
	maxTitleLen := l.width - 24
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	label := fmt.Sprintf("%s#%d %-*s", indicator, m.ID, maxTitleLen, title)
	badge := l.styles.Strength(m.Strength).Render(string(m.Strength))

	var titleLine string
	if index == l.selected {
		titleLine = l.styles.Selected.Render(label) + " " + badge
	} else {
		titleLine = l.styles.Normal.Render(label) + " " + badge
	}

	detail := fmt.Sprintf("    distance %.3f  similarity %.3f", m.Distance, m.Similarity)
	if m.GroupID != nil {
		detail += fmt.Sprintf("  group %d", *m.GroupID)
	}

	return titleLine + "\n" + l.styles.Muted.Render(detail)
}

// SetMatches replaces the list contents and resets the selection.
func (l *MatchList) SetMatches(matches []domain.MatchResult) {
	l.matches = matches
	l.selected = 0
}

// Matches returns the current matches.
func (l *MatchList) Matches() []domain.MatchResult {
	return l.matches
}

// Selected returns the index of the selected match.
func (l *MatchList) Selected() int {
	return l.selected
}

// SetSelected sets the selected index; out-of-range values are ignored.
func (l *MatchList) SetSelected(index int) {
	if index >= 0 && index < len(l.matches) {
		l.selected = index
	}
}

// SelectedMatch returns the selected match, or nil if the list is empty.
func (l *MatchList) SelectedMatch() *domain.MatchResult {
	if l.selected < 0 || l.selected >= len(l.matches) {
		return nil
	}
	return &l.matches[l.selected]
}

// MoveUp moves selection up.
func (l *MatchList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *MatchList) MoveDown() {
	if l.selected < len(l.matches)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *MatchList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of matches.
func (l *MatchList) Count() int {
	return len(l.matches)
}
