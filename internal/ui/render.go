package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/dustin/go-humanize"

	"github.com/femtomc/jwz/internal/types"
)

// Palette shared by all CLI output.
var (
	ColorAccent = lipgloss.Color("12")
	ColorDim    = lipgloss.Color("8")
	ColorAuthor = lipgloss.Color("10")
)

var (
	idStyle     = lipgloss.NewStyle().Foreground(ColorAccent)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorDim)
	authorStyle = lipgloss.NewStyle().Foreground(ColorAuthor).Bold(true)
)

var (
	colorOnce    sync.Once
	colorEnabled bool
)

// useColor caches the ShouldUseColor decision for the process.
func useColor() bool {
	colorOnce.Do(func() { colorEnabled = ShouldUseColor() })
	return colorEnabled
}

// styled applies style only when color output is enabled, keeping
// piped output machine-readable.
func styled(style lipgloss.Style, s string) string {
	if !useColor() {
		return s
	}
	return style.Render(s)
}

// ShortID returns the display prefix of an identifier: long enough to
// resolve in practice, short enough to type.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// TimeAgo renders a millisecond epoch timestamp as relative time.
func TimeAgo(millis int64) string {
	return humanize.Time(time.UnixMilli(millis))
}

// senderLabel names the author of a message for display.
func senderLabel(m *types.Message) string {
	if m.Sender == nil || m.Sender.Name == "" {
		return "anonymous"
	}
	label := m.Sender.Name
	if m.Sender.Role != "" {
		label += " (" + m.Sender.Role + ")"
	}
	return label
}

// RenderMessage renders one message as a card: header line with id,
// author and age, then the body.
func RenderMessage(m *types.Message) string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s  %s",
		styled(idStyle, ShortID(m.ID)),
		styled(authorStyle, senderLabel(m)),
		styled(dimStyle, TimeAgo(m.CreatedAt)))
	if m.ReplyCount > 0 {
		header += styled(dimStyle, fmt.Sprintf("  [%d replies]", m.ReplyCount))
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.Body)

	if m.Git != nil {
		oid := m.Git.OID
		if len(oid) > 10 {
			oid = oid[:10]
		}
		gitLine := fmt.Sprintf("%s@%s", m.Git.Head, oid)
		if m.Git.Dirty {
			gitLine += " (dirty)"
		}
		b.WriteString("\n")
		b.WriteString(styled(dimStyle, gitLine))
	}
	return b.String()
}

// messageLine is the one-line form used for list and tree entries.
func messageLine(m *types.Message) string {
	body := m.Body
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[:i]
	}
	if len(body) > 72 {
		body = body[:72] + "…"
	}
	return fmt.Sprintf("%s  %s  %s  %s",
		styled(idStyle, ShortID(m.ID)),
		body,
		styled(authorStyle, senderLabel(m)),
		styled(dimStyle, TimeAgo(m.CreatedAt)))
}

// RenderList renders messages one per line.
func RenderList(msgs []*types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(messageLine(m))
		b.WriteString("\n")
	}
	return b.String()
}

// newTreeNode builds one tree node, styling the connectors only when
// color output is enabled.
func newTreeNode(label string) *tree.Tree {
	t := tree.New().Root(label)
	if useColor() {
		t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorDim))
	}
	return t
}

// RenderThread renders a thread (root first, replies in creation
// order, as returned by the repository) as a tree. Depth comes from
// walking each message's parent chain.
func RenderThread(msgs []*types.Message) string {
	if len(msgs) == 0 {
		return ""
	}

	root := newTreeNode(messageLine(msgs[0]))
	nodes := map[string]*tree.Tree{msgs[0].ID: root}
	for _, m := range msgs[1:] {
		node := newTreeNode(messageLine(m))
		nodes[m.ID] = node

		if m.ParentID != nil {
			if parent, ok := nodes[*m.ParentID]; ok {
				parent.Child(node)
				continue
			}
		}
		root.Child(node)
	}
	return root.String()
}
