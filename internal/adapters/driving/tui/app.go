package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/supplymatch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

// App is the match browser following the Elm architecture.
// A title is typed, matched against the catalog index, and the selected
// match can be previewed through the suggestion engine.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	input     *input.TitleInput
	list      *list.MatchList
	statusbar *status.Bar

	// focusInput is true while typing and false while navigating matches.
	focusInput bool
	showHelp   bool

	query   string
	preview *domain.SuggestionReport
	err     error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a match browser over the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     s,
		keymap:     km,
		input:      input.NewTitleInput(s),
		list:       list.NewMatchList(s),
		statusbar:  status.NewBar(s, km),
		focusInput: true,
		width:      80,
		height:     24,
	}, nil
}

// WithContext sets the context passed to service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// WithQuery pre-fills the title input. A non-empty title is matched on start.
func (a *App) WithQuery(title string) *App {
	a.input.SetValue(title)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.input.Init(), tea.SetWindowTitle("supplymatch")}
	if strings.TrimSpace(a.input.Value()) != "" {
		cmds = append(cmds, a.submit())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.SearchCompleted:
		a.handleSearchCompleted(msg)
		return a, nil

	case messages.SuggestionCompleted:
		a.handleSuggestionCompleted(msg)
		return a, nil

	case messages.ErrorOccurred:
		a.setError(msg.Err)
		return a, nil
	}

	if a.focusInput {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	if a.focusInput {
		return a.handleInputKey(msg)
	}
	return a.handleResultsKey(msg)
}

func (a *App) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	//nolint:exhaustive // only submit and leave are special while typing
	switch msg.Type {
	case tea.KeyEnter:
		if strings.TrimSpace(a.input.Value()) == "" {
			return a, nil
		}
		return a, a.submit()
	case tea.KeyEsc:
		if a.list.Count() == 0 {
			return a, tea.Quit
		}
		a.focusResults()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := a.keymap
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, km.Quit):
		return a, tea.Quit
	case keymap.Matches(keyStr, km.Help):
		a.showHelp = true
	case keymap.Matches(keyStr, km.Up):
		a.list.MoveUp()
		a.preview = nil
	case keymap.Matches(keyStr, km.Down):
		a.list.MoveDown()
		a.preview = nil
	case keymap.Matches(keyStr, km.NewSearch):
		a.preview = nil
		a.input.Reset()
		a.focusInput = true
		return a, a.input.Focus()
	case keymap.Matches(keyStr, km.Suggest):
		return a, a.suggest()
	case keymap.Matches(keyStr, km.Back):
		if a.preview != nil {
			a.preview = nil
			return a, nil
		}
		a.focusInput = true
		return a, a.input.Focus()
	}
	return a, nil
}

// submit starts a match for the current input value.
func (a *App) submit() tea.Cmd {
	query := strings.TrimSpace(a.input.Value())
	a.query = query
	a.preview = nil
	a.statusbar.SetState(status.StateSearching)
	a.statusbar.SetMessage("")

	matching := a.ports.Matching
	ctx := a.ctx
	return func() tea.Msg {
		matches, err := matching.Search(ctx, domain.MatchQuery{Query: query})
		return messages.SearchCompleted{Query: query, Matches: matches, Err: err}
	}
}

// suggest starts a suggestion preview for the selected match.
func (a *App) suggest() tea.Cmd {
	selected := a.list.SelectedMatch()
	if selected == nil {
		return nil
	}
	if a.ports.Suggestion == nil {
		a.statusbar.SetMessage("Suggestions not available")
		return nil
	}

	a.statusbar.SetState(status.StateSuggesting)
	itemID := selected.ID
	suggestion := a.ports.Suggestion
	ctx := a.ctx
	return func() tea.Msg {
		report, err := suggestion.SuggestForItems(ctx, []int64{itemID})
		return messages.SuggestionCompleted{ItemID: itemID, Report: report, Err: err}
	}
}

func (a *App) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		a.setError(msg.Err)
		a.list.SetMatches(nil)
		return
	}

	a.err = nil
	a.list.SetMatches(msg.Matches)
	a.statusbar.SetState(status.StateResults)
	a.statusbar.SetMessage("")
	a.statusbar.SetMatchCounts(len(msg.Matches), countHard(msg.Matches))
	if len(msg.Matches) > 0 {
		a.focusResults()
	}
}

func (a *App) handleSuggestionCompleted(msg messages.SuggestionCompleted) {
	if msg.Err != nil {
		a.setError(msg.Err)
		return
	}
	// Ignore a preview that arrives after the selection moved on.
	if selected := a.list.SelectedMatch(); selected == nil || selected.ID != msg.ItemID {
		a.statusbar.SetState(status.StateResults)
		return
	}

	report := msg.Report
	a.err = nil
	a.preview = &report
	a.statusbar.SetState(status.StateResults)
	a.statusbar.SetMessage(fmt.Sprintf("%d suggestions for #%d", len(report.Suggestions), msg.ItemID))
}

func (a *App) setError(err error) {
	a.err = err
	a.statusbar.SetState(status.StateError)
	a.statusbar.SetMessage(err.Error())
}

func (a *App) focusResults() {
	a.focusInput = false
	a.input.Blur()
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	if a.showHelp {
		return a.viewHelp()
	}

	sections := make([]string, 0, 10)
	sections = append(sections, a.styles.Title.Render("supplymatch"), "", a.input.View(), "")

	if a.err != nil {
		sections = append(sections, a.styles.Error.Render("Error: "+a.err.Error()), "")
	}

	sections = append(sections, a.list.View())

	if a.preview != nil {
		sections = append(sections, "", a.styles.Border.Padding(0, 1).Render(a.viewPreview()))
	}

	sections = append(sections, "", a.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) viewPreview() string {
	report := a.preview
	lines := make([]string, 0, 8)

	for _, item := range report.Items {
		lines = append(lines, a.styles.Subtitle.Render(fmt.Sprintf("Item #%d %s: %d available, %d suggested",
			item.ItemID, item.Title, item.QuantityAvailable, item.Allocated)))
		if item.Error != "" {
			lines = append(lines, a.styles.Error.Render("  skipped: "+item.Error))
			continue
		}
		if item.Degraded {
			lines = append(lines, a.styles.Soft.Render("  matching unavailable, exact titles used"))
		}

		n := 0
		for _, s := range report.Suggestions {
			if s.ItemID != item.ItemID {
				continue
			}
			n++
			line := fmt.Sprintf("  request %d  partner %d  qty %d", s.RequestID, s.PartnerID, s.SuggestedQuantity)
			if s.MatchedFromItemID != nil {
				line += fmt.Sprintf("  (via item #%d)", *s.MatchedFromItemID)
			}
			lines = append(lines, a.styles.Normal.Render(line))
		}
		if n == 0 {
			lines = append(lines, a.styles.Muted.Render("  no open requests"))
		}
		for _, m := range item.SoftMatches {
			lines = append(lines, a.styles.Soft.Render(
				fmt.Sprintf("  review: #%d %s (distance %.3f)", m.ID, m.Title, m.Distance)))
		}
	}

	if len(lines) == 0 {
		return a.styles.Muted.Render("Nothing to suggest")
	}
	return strings.Join(lines, "\n")
}

func (a *App) viewHelp() string {
	lines := []string{a.styles.Title.Render("Keys"), ""}
	for _, group := range a.keymap.FullHelp() {
		for _, b := range group {
			h := b.Help()
			lines = append(lines, fmt.Sprintf("  %-8s %s", h.Key, h.Desc))
		}
		lines = append(lines, "")
	}
	lines = append(lines, a.styles.Muted.Render("press any key to close"))
	return strings.Join(lines, "\n")
}

// Run starts the browser on the alternate screen.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Query returns the last submitted title.
func (a *App) Query() string {
	return a.query
}

// Matches returns the listed matches.
func (a *App) Matches() []domain.MatchResult {
	return a.list.Matches()
}

// SelectedIndex returns the selected match index.
func (a *App) SelectedIndex() int {
	return a.list.Selected()
}

// Preview returns the suggestion preview for the selected match, if any.
func (a *App) Preview() *domain.SuggestionReport {
	return a.preview
}

// InputFocused reports whether keystrokes go to the title input.
func (a *App) InputFocused() bool {
	return a.focusInput
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the terminal size is known.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	a.input.SetWidth(width)
	// Title, input, status bar and spacing take roughly ten lines.
	a.list.SetDimensions(width, height-10)
	a.statusbar.SetWidth(width)
}

func countHard(matches []domain.MatchResult) int {
	n := 0
	for i := range matches {
		if matches[i].Strength == domain.MatchHard {
			n++
		}
	}
	return n
}
