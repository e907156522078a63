package ui

import (
	"context"
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/playsync/api"
	"github.com/jscyril/playsync/internal/config"
	"github.com/jscyril/playsync/internal/playback"
	"github.com/jscyril/playsync/internal/ui/views"
	"github.com/samber/lo"
)

// Model is the main bubbletea model. It reads the synchronizer's mirror
// and turns key presses into synchronizer actions.
type Model struct {
	// Dimensions
	width  int
	height int

	sync       *playback.Synchronizer
	keys       config.KeyMap
	seekStep   time.Duration
	volumeStep float64

	playerView views.PlayerView
	states     <-chan playback.State

	// State
	ctx    context.Context
	cancel context.CancelFunc
	err    error
}

// StateMsg carries a fresh mirror snapshot
type StateMsg playback.State

// NewModel creates a new application model
func NewModel(s *playback.Synchronizer, track *api.Track, cfg *config.Config) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		sync:       s,
		keys:       cfg.KeyBindings,
		seekStep:   cfg.SeekStep,
		volumeStep: cfg.VolumeStep,
		playerView: views.NewPlayerView(80, 10),
		states:     s.Watch(ctx),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.playerView.Track = track
	m.playerView.SetState(s.Snapshot())
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.waitForState()
}

// waitForState returns a command that delivers the next mirror change
func (m Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.states
		if !ok {
			return nil
		}
		return StateMsg(state)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playerView.SetWidth(m.width)

	case StateMsg:
		m.playerView.SetState(playback.State(msg))
		return m, m.waitForState()

	case tea.KeyMsg:
		return m.handleKey(msg.String())
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	state := m.sync.Snapshot()

	switch key {
	case m.keys.Quit, "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case m.keys.PlayPause:
		m.err = m.sync.TogglePlay()

	case m.keys.SeekForward:
		target := state.CurrentTime + m.seekStep
		if state.Duration > 0 {
			target = lo.Clamp(target, 0, state.Duration)
		}
		m.err = m.sync.Seek(target)

	case m.keys.SeekBack:
		m.err = m.sync.Seek(max(state.CurrentTime-m.seekStep, 0))

	case m.keys.VolumeUp, "=":
		m.err = m.sync.SetVolume(stepVolume(state.Volume, m.volumeStep))

	case m.keys.VolumeDown:
		m.err = m.sync.SetVolume(stepVolume(state.Volume, -m.volumeStep))
	}

	return m, nil
}

// stepVolume moves level by delta, kept within [0, 1] and free of float drift
func stepVolume(level, delta float64) float64 {
	next := math.Round((level+delta)*100) / 100
	return lo.Clamp(next, 0, 1)
}

// View renders the UI
func (m Model) View() string {
	sb := m.playerView.View()

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		sb += "\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	return sb
}

// Run starts the bubbletea program
func Run(s *playback.Synchronizer, track *api.Track, cfg *config.Config) error {
	model := NewModel(s, track, cfg)
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
