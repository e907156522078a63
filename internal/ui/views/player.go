package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/playsync/api"
	"github.com/jscyril/playsync/internal/playback"
	"github.com/jscyril/playsync/internal/ui/components"
)

// PlayerView displays the mirrored playback state
type PlayerView struct {
	Width       int
	Height      int
	State       playback.State
	Track       *api.Track
	ProgressBar components.ProgressBar

	// Styles
	TitleStyle    lipgloss.Style
	ArtistStyle   lipgloss.Style
	AlbumStyle    lipgloss.Style
	StatusStyle   lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewPlayerView creates a new player view
func NewPlayerView(width, height int) PlayerView {
	return PlayerView{
		Width:       width,
		Height:      height,
		ProgressBar: components.NewProgressBar(width - 10),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		ArtistStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		AlbumStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
	}
}

// SetState updates the displayed playback state
func (v *PlayerView) SetState(state playback.State) {
	v.State = state
	v.ProgressBar.SetProgress(state.CurrentTime, state.Duration)
}

// SetWidth resizes the view
func (v *PlayerView) SetWidth(width int) {
	v.Width = width
	v.ProgressBar.Width = width - 10
}

// View renders the player view
func (v PlayerView) View() string {
	var sb strings.Builder

	statusIcon := "⏸"
	if v.State.Playing {
		statusIcon = "▶"
	}
	sb.WriteString(v.StatusStyle.Render(statusIcon + " "))

	if v.Track == nil {
		sb.WriteString(v.TitleStyle.Render("♪ No track loaded"))
	} else {
		sb.WriteString(v.TitleStyle.Render(v.Track.Title))
		if v.Track.Artist != "" {
			sb.WriteString("\n")
			sb.WriteString(v.ArtistStyle.Render(v.Track.Artist))
		}
		if v.Track.Album != "" {
			sb.WriteString("\n")
			sb.WriteString(v.AlbumStyle.Render(v.Track.Album))
		}
	}
	sb.WriteString("\n\n")

	sb.WriteString(v.ProgressBar.View())
	sb.WriteString("\n\n")

	volumeBar := renderVolumeBar(v.State.Volume)
	sb.WriteString(fmt.Sprintf("Volume: %s %d%%", volumeBar, int(v.State.Volume*100+0.5)))

	sb.WriteString("\n")
	sb.WriteString(v.ControlsStyle.Render(
		"[Space] Play/Pause  [←/→] Seek  [+/-] Volume  [q] Quit",
	))

	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}

// renderVolumeBar renders a volume bar
func renderVolumeBar(volume float64) string {
	filled := int(volume*10 + 0.5)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	empty := 10 - filled

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return filledStyle.Render(strings.Repeat("●", filled)) + emptyStyle.Render(strings.Repeat("○", empty))
}
