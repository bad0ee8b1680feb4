package ui

import (
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CallSummary is the post-hangup report.
type CallSummary struct {
	Room     string
	Role     string
	Peer     string
	Duration time.Duration
	AvgRTT   time.Duration

	VideoPackets int64
	VideoBytes   int64
	AudioPackets int64
	AudioBytes   int64

	RecordDir string
}

// RenderCallSummary prints the summary table after the call ends.
func RenderCallSummary(s CallSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Call Summary")
	t.Style().Title.Align = text.AlignCenter

	peer := s.Peer
	if peer == "" {
		peer = "(unknown)"
	}

	t.AppendRows([]table.Row{
		{"Room", s.Room},
		{"Role", s.Role},
		{"Peer", peer},
		{"Duration", formatDuration(s.Duration)},
		{"Avg RTT", formatRTT(s.AvgRTT)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Video received", strconv.FormatInt(s.VideoPackets, 10) + " packets / " + formatBytes(s.VideoBytes)},
		{"Audio received", strconv.FormatInt(s.AudioPackets, 10) + " packets / " + formatBytes(s.AudioBytes)},
	})
	if s.RecordDir != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Recording", s.RecordDir})
	}

	t.Render()
}
