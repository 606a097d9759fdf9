// Package main - haunt-monitor
// Terminal observer for a running console server. Connects to the
// WebSocket feed and renders the haunting as it happens.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

const maxLines = 200

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	moodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	eventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	scaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

type wireMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type frameMsg wireMessage

// decodeFrames splits one websocket message into its frames. The
// server batches queued frames into a single message joined by
// newlines, so a burst of events arrives as one read. Unparseable
// frames are skipped, not the whole batch.
func decodeFrames(data []byte) []wireMessage {
	var frames []wireMessage
	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		if len(raw) == 0 {
			continue
		}
		var frame wireMessage
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

type disconnectMsg struct{ err error }

type model struct {
	stage     string
	mood      string
	lines     []string
	height    int
	connected bool
	lastErr   error
}

func initialModel() model {
	return model{stage: "?", mood: "?", connected: true}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case frameMsg:
		m = m.apply(wireMessage(msg))
	case disconnectMsg:
		m.connected = false
		m.lastErr = msg.err
	}
	return m, nil
}

func (m model) apply(frame wireMessage) model {
	var fields map[string]interface{}
	json.Unmarshal(frame.Payload, &fields)

	switch frame.Event {
	case "haunting.stage.changed":
		if v, ok := fields["stage"].(float64); ok {
			m.stage = fmt.Sprintf("%d", int(v))
		}
	case "haunting.mood.changed":
		if v, ok := fields["mood"].(string); ok {
			m.mood = v
		}
	}

	line := eventStyle.Render(frame.Event)
	if len(fields) > 0 {
		detail, _ := json.Marshal(fields)
		line += " " + helpStyle.Render(string(detail))
	}
	if frame.Event == "haunting.jumpscare" {
		line = scaryStyle.Render("!! " + frame.Event + " !!")
	}

	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	return m
}

func (m model) View() string {
	header := titleStyle.Render("HAUNT MONITOR") +
		"  stage " + stageStyle.Render(m.stage) +
		"  mood " + moodStyle.Render(m.mood)
	if !m.connected {
		header += "  " + scaryStyle.Render("[signal lost]")
	}

	visible := m.lines
	if budget := m.height - 3; budget > 0 && len(visible) > budget {
		visible = visible[len(visible)-budget:]
	}

	body := ""
	for _, l := range visible {
		body += l + "\n"
	}
	return header + "\n\n" + body + helpStyle.Render("q to quit")
}

func main() {
	addr := flag.String("addr", "ws://localhost:8666/ws", "console server WebSocket URL")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "haunt-monitor: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				p.Send(disconnectMsg{err: err})
				return
			}
			for _, frame := range decodeFrames(data) {
				p.Send(frameMsg(frame))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "haunt-monitor: %v\n", err)
		os.Exit(1)
	}
}
