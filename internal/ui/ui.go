package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InputView ViewState = iota
	WorkingView
	PreviewView
	ResultView
)

// Pipeline is the conversion surface the TUI drives.
type Pipeline interface {
	Start(ctx context.Context, youtubeURL string) error
	Confirm(ctx context.Context) (*tasks.Result, error)
	Cancel() error
	Reset() error
	Session() models.Session
}

var _ Pipeline = (*tasks.Converter)(nil)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	pipeline Pipeline
	updates  <-chan tasks.ProgressUpdate
	waiting  bool

	width  int
	height int

	input    textinput.Model
	spinner  spinner.Model
	songs    list.Model
	progress tasks.ProgressUpdate
	session  models.Session
	result   *tasks.Result
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI over pipeline. updates must be the channel the pipeline reports progress on.
//
// A non-empty initialURL starts converting immediately.
func NewModel(ctx context.Context, pipeline Pipeline, updates <-chan tasks.ProgressUpdate, initialURL string) *Model {
	ti := textinput.New()
	ti.Placeholder = "https://www.youtube.com/watch?v=..."
	ti.Prompt = "YouTube URL: "
	ti.CharLimit = 512
	ti.SetValue(initialURL)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:      ctx,
		view:     InputView,
		pipeline: pipeline,
		updates:  updates,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the cursor blink, or the conversion when a URL was given.
func (m *Model) Init() tea.Cmd {
	if strings.TrimSpace(m.input.Value()) != "" {
		return m.start()
	}
	return textinput.Blink
}

// ViewState returns the current view.
func (m *Model) ViewState() ViewState {
	return m.view
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == PreviewView {
			m.songs.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			if m.session.Phase.Busy() || m.view == PreviewView {
				_ = m.pipeline.Cancel()
			}
			return m, tea.Quit
		}
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case WorkingView:
			return m.handleWorkingKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != WorkingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.waiting = false
		m.progress = msg.data.(tasks.ProgressUpdate)
		if m.progress.Done() {
			return m, nil
		}
		return m, m.waitForProgress()

	case MsgStartFinished:
		data := msg.data.(startFinished)
		m.session = m.pipeline.Session()
		switch {
		case data.err == nil:
			m.showPreview()
		case errors.Is(data.err, shared.ErrValidation):
			m.err = data.err
			m.view = InputView
			m.input.Focus()
		case errors.Is(data.err, shared.ErrConversionCancelled):
			// Cancel already moved to the result view.
		default:
			m.err = data.err
			m.view = ResultView
		}
		return m, nil

	case MsgConfirmFinished:
		data := msg.data.(confirmFinished)
		m.session = m.pipeline.Session()
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.enter) {
		if strings.TrimSpace(m.input.Value()) == "" {
			m.err = fmt.Errorf("%w: enter a YouTube URL", shared.ErrValidation)
			return m, nil
		}
		return m, m.start()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleWorkingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.pipeline.Session().Phase.Busy() {
		if err := m.pipeline.Cancel(); err == nil {
			m.session = m.pipeline.Session()
			m.view = ResultView
		}
	}
	return m, nil
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.confirm()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.cancel):
		if err := m.pipeline.Cancel(); err != nil {
			m.err = err
		}
		m.session = m.pipeline.Session()
		m.view = ResultView
		return m, nil
	}

	var cmd tea.Cmd
	m.songs, cmd = m.songs.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		_ = m.pipeline.Reset()
		m.session = m.pipeline.Session()
		m.view = InputView
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case InputView:
		m.input, cmd = m.input.Update(msg)
	case PreviewView:
		m.songs, cmd = m.songs.Update(msg)
	}
	return m, cmd
}

func (m *Model) showPreview() {
	m.songs = list.New(songItems(m.session.MatchedSongs), list.NewDefaultDelegate(), 0, 0)
	m.songs.Title = fmt.Sprintf("Found %d of %d songs on Spotify", models.CountFound(m.session.MatchedSongs), len(m.session.MatchedSongs))
	m.songs.SetShowStatusBar(false)
	m.songs.SetFilteringEnabled(false)
	if m.width > 0 {
		m.songs.SetSize(m.width-4, m.height-8)
	}
	m.view = PreviewView
}

func (m *Model) start() tea.Cmd {
	url := strings.TrimSpace(m.input.Value())
	m.err = nil
	m.view = WorkingView
	m.input.Blur()

	run := func() tea.Msg {
		return startFinishedMsg(m.pipeline.Start(m.ctx, url))
	}
	return tea.Batch(run, m.waitForProgress(), m.spinner.Tick)
}

func (m *Model) confirm() tea.Cmd {
	m.view = WorkingView
	run := func() tea.Msg {
		res, err := m.pipeline.Confirm(m.ctx)
		return confirmFinishedMsg(res, err)
	}
	return tea.Batch(run, m.waitForProgress(), m.spinner.Tick)
}

// waitForProgress reads one update. At most one read is outstanding.
func (m *Model) waitForProgress() tea.Cmd {
	if m.updates == nil || m.waiting {
		return nil
	}
	m.waiting = true
	updates, ctx := m.updates, m.ctx
	return func() tea.Msg {
		select {
		case u := <-updates:
			return progressUpdateMsg(u)
		case <-ctx.Done():
			return nil
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case WorkingView:
		return m.renderWorking()
	case PreviewView:
		return m.renderPreview()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderInput() string {
	title := styles.title.Render("YT2Spotify")
	body := m.input.View()
	if m.err != nil {
		body += "\n\n" + styles.err.Render(m.err.Error())
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, body, helpView)
}

func (m *Model) renderWorking() string {
	title := styles.title.Render("Converting")

	var phase string
	switch m.progress.Phase {
	case models.PhaseRecognizing:
		phase = "Recognizing songs in the video..."
	case models.PhaseSearching:
		phase = fmt.Sprintf("Searching Spotify (%d/%d)", m.progress.Step, m.progress.Total)
	case models.PhaseCreating:
		phase = "Creating playlist..."
	default:
		phase = "Working..."
	}

	msg := m.progress.Message
	if msg == "" {
		msg = m.input.Value()
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit})
	return fmt.Sprintf("%s\n%s %s\n%s\n\n%s", title, m.spinner.View(), phase, styles.help.Render(msg), helpView)
}

func (m *Model) renderPreview() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n\n%s", m.songs.View(), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	s := m.session
	switch s.Outcome {
	case models.OutcomeSuccess:
		title := styles.ok.Render("✓ " + s.Message)
		info := ""
		if s.Playlist != nil && s.Playlist.URL != "" {
			info = "\n" + s.Playlist.URL
		}
		return fmt.Sprintf("%s%s\n\n%s", title, info, helpView)

	case models.OutcomeCancelled:
		return fmt.Sprintf("%s\n\n%s", styles.warn.Render(s.Message), helpView)

	default:
		msg := s.Message
		if msg == "" && m.err != nil {
			msg = shared.UserMessage(m.err)
		}
		var partial string
		if m.result != nil && m.result.Playlist != nil {
			partial = fmt.Sprintf("\nPlaylist %q was created with %d of %d tracks.", m.result.Playlist.Name, m.result.TracksAdded, m.result.Requested)
		}
		return fmt.Sprintf("%s%s\n\n%s", styles.err.Render("✗ "+msg), partial, helpView)
	}
}
