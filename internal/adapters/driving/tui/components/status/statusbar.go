// Package status provides the status bar for the match browser.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/styles"
)

// State represents what the browser is doing.
type State string

const (
	StateReady      State = "ready"
	StateSearching  State = "searching"
	StateSuggesting State = "suggesting"
	StateError      State = "error"
	StateResults    State = "results"
)

// Bar displays the browser state and keybinding hints.
type Bar struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	state     State
	message   string
	matches   int
	hardCount int
	width     int
}

// NewBar creates a new status bar.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	inner := b.width - b.styles.StatusBar.GetHorizontalFrameSize()
	padding := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return b.styles.StatusBar.Width(b.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (b *Bar) renderLeft() string {
	switch b.state {
	case StateSearching:
		return b.styles.Muted.Render("Matching...")
	case StateSuggesting:
		return b.styles.Muted.Render("Suggesting...")
	case StateError:
		if b.message != "" {
			return b.styles.Error.Render("Error: " + b.message)
		}
		return b.styles.Error.Render("Error")
	case StateResults:
		if b.message != "" {
			return b.styles.Normal.Render(b.message)
		}
		return b.styles.Normal.Render(fmt.Sprintf("%d matches, %d hard", b.matches, b.hardCount))
	case StateReady:
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) renderRight() string {
	var bindings []key.Binding
	if b.state == StateResults && b.matches > 0 {
		bindings = b.keymap.ResultsHelp()
	} else {
		bindings = b.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets a message shown in place of the default state text.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetMatchCounts records how many matches are listed and how many are hard.
func (b *Bar) SetMatchCounts(total, hard int) {
	b.matches = total
	b.hardCount = hard
}

// MatchCount returns the number of listed matches.
func (b *Bar) MatchCount() int {
	return b.matches
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear resets the status bar to its initial state.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.matches = 0
	b.hardCount = 0
}
