package sink

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// TerminalSink renders the engine events for an interactive session.
// Each message is printed once, later merges only print what is new.
type TerminalSink struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	printed map[string]struct{}
}

func NewTerminalSink(out io.Writer, colours bool) *TerminalSink {
	return &TerminalSink{out: out, colours: colours, printed: make(map[string]struct{})}
}

func (t *TerminalSink) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch evt := e.(type) {
	case event.ConversationOpened:
		t.printed = make(map[string]struct{})
		header := fmt.Sprintf("  ====== %s (%s) ======", evt.Conversation.Subject, evt.Conversation.CounterpartyID)
		_, err := fmt.Fprintln(t.out, t.paint(header, color.BgBlack, color.FgGreen))
		return err
	case event.MessagesMerged:
		for _, m := range evt.Messages {
			if _, ok := t.printed[m.ID]; ok {
				continue
			}
			t.printed[m.ID] = struct{}{}
			if _, err := fmt.Fprintln(t.out, t.line(m)); err != nil {
				return err
			}
		}
	case event.MessageSendFailed:
		_, err := fmt.Fprintln(t.out, t.paint(fmt.Sprintf("not sent, draft kept: %v", evt.Err), color.FgRed))
		return err
	}
	return nil
}

func (t *TerminalSink) line(m domain.Message) string {
	at := m.Time().Local().Format(time.TimeOnly)
	if m.IsFromSelf() {
		tick := "✓"
		if m.Status == domain.StatusRead {
			tick = "✓✓"
		}
		return fmt.Sprintf("%s %s %s", at, t.paint("me:", color.FgCyan), m.Content+" "+tick)
	}
	who := m.SenderID
	if who == "" {
		who = "them"
	}
	return fmt.Sprintf("%s %s %s", at, t.paint(who+":", color.FgYellow), m.Content)
}

// RenderConversations prints the list on demand, refresh events are never printed.
func (t *TerminalSink) RenderConversations(conversations []domain.Conversation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"Conversation", "Kind", "With", "Subject", "Last message", "Unread"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetHeaderLine(false)
	for _, c := range conversations {
		with := c.CounterpartyName
		if with == "" {
			with = c.CounterpartyID
		}
		table.Append([]string{c.ID, string(c.Kind), with, c.Subject, c.LastMessage, strconv.Itoa(c.UnreadCount)})
	}
	table.Render()
}

func (t *TerminalSink) paint(s string, styles ...color.Color) string {
	if !t.colours {
		return s
	}
	return color.New(styles...).Render(s)
}
