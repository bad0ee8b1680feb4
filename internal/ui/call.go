package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/awahab1116/video-streaming/internal/media"
)

// TickMsg drives the once-a-second duration refresh.
type TickMsg time.Time

// CallUpdate is a message sent from external goroutines to update the view.
type CallUpdate struct {
	State    string
	PeerName string
	RTT      time.Duration
	Stats    *media.SinkStats
}

// CallUI wraps the live in-call Bubble Tea view. It runs inline (no alt
// screen) so the lobby output above it stays visible.
type CallUI struct {
	program    *tea.Program
	model      *callModel
	updateChan chan CallUpdate
	wg         sync.WaitGroup
}

// callModel is the internal model for the live call view.
type callModel struct {
	roomID     string
	state      string
	peerName   string
	rtt        time.Duration
	stats      media.SinkStats
	startTime  time.Time
	spinner    spinner.Model
	updateChan chan CallUpdate
	onQuit     func()
	mu         sync.RWMutex
	quitting   bool
}

// NewCallUI creates the live call view. onQuit runs when the user presses q
// or ctrl+c; the view itself stays up until Stop.
func NewCallUI(roomID string, onQuit func()) *CallUI {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	updateChan := make(chan CallUpdate, 100)

	model := &callModel{
		roomID:     roomID,
		state:      "Negotiating...",
		spinner:    s,
		updateChan: updateChan,
		onQuit:     onQuit,
		startTime:  time.Now(),
	}

	return &CallUI{
		model:      model,
		updateChan: updateChan,
	}
}

// Start runs the UI in a goroutine.
func (ui *CallUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		ui.program = tea.NewProgram(ui.model)
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Update pushes a state change into the view. Safe from any goroutine;
// drops when the view cannot keep up.
func (ui *CallUI) Update(update CallUpdate) {
	select {
	case ui.updateChan <- update:
	default:
	}
}

// Stop quits the program and waits for the terminal to be released.
func (ui *CallUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUpdates(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return TickMsg(t)
		}),
	)
}

func (m *callModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.mu.Lock()
			m.quitting = true
			m.mu.Unlock()
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, nil

		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg {
			return TickMsg(t)
		}))

	case CallUpdate:
		m.mu.Lock()
		if msg.State != "" {
			m.state = msg.State
		}
		if msg.PeerName != "" {
			m.peerName = msg.PeerName
		}
		if msg.RTT > 0 {
			m.rtt = msg.RTT
		}
		if msg.Stats != nil {
			m.stats = *msg.Stats
		}
		m.mu.Unlock()
		cmds = append(cmds, m.listenForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *callModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s vstream — room %s", IconVideo, m.roomID))
	b.WriteString(header + "\n\n")

	connected := m.state == "Connected"
	if connected {
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s %s", IconConnect, m.state)))
	} else {
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.state))
	}
	b.WriteString("\n\n")

	peer := m.peerName
	if peer == "" {
		peer = MutedStyle.Render("(unknown)")
	}
	b.WriteString(fmt.Sprintf("  %s Peer:     %s\n", IconPeer, peer))
	b.WriteString(fmt.Sprintf("  %s Duration: %s", IconTime, formatDuration(time.Since(m.startTime))))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("   RTT: %s", formatRTT(m.rtt))))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s Video in: %s packets, %s\n",
		IconVideo,
		BoldStyle.Render(fmt.Sprintf("%d", m.stats.VideoPackets)),
		formatBytes(m.stats.VideoBytes),
	))
	b.WriteString(fmt.Sprintf("  %s Audio in: %s packets, %s\n",
		IconAudio,
		BoldStyle.Render(fmt.Sprintf("%d", m.stats.AudioPackets)),
		formatBytes(m.stats.AudioBytes),
	))

	if m.quitting {
		b.WriteString("\n" + WarningStyle.Render("Hanging up..."))
	} else {
		b.WriteString("\n" + MutedStyle.Render("Press q to hang up"))
	}

	return ContainerStyle.Render(b.String())
}
