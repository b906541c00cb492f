package main

import (
	"bufio"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/domain/search"
	"chat-sync/services"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const help = `/list                 conversations, newest first
/open <id>            open a conversation by counterparty or conversation id
/read                 mark the open conversation as read
/search <terms> [--conversation <id>] [--limit <n>]
/draft                show the pending draft
/quit
anything else is sent to the open conversation`

type conversationRenderer interface {
	RenderConversations(conversations []domain.Conversation)
}

// console reads commands line by line. Output of the engine itself goes through the terminal sink.
type console struct {
	chat     services.IChatService
	bus      contract.IBus
	renderer conversationRenderer
	in       io.Reader
	out      io.Writer
}

func newConsole(chat services.IChatService, bus contract.IBus, renderer conversationRenderer, in io.Reader, out io.Writer) *console {
	return &console{chat: chat, bus: bus, renderer: renderer, in: in, out: out}
}

// Run returns nil on /quit or at the end of the input.
func (c *console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, help)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		c.handle(ctx, line)
	}
	return scanner.Err()
}

func (c *console) handle(ctx context.Context, line string) {
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/list":
		c.renderer.RenderConversations(c.chat.Conversations())
	case "/open":
		if arg == "" {
			fmt.Fprintln(c.out, "usage: /open <id>")
			return
		}
		c.bus.Publish(ctx, event.OpenConversationRequested{CounterpartyID: arg})
	case "/read":
		marked, err := c.chat.MarkAsRead(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "mark as read: %v\n", err)
		}
		fmt.Fprintf(c.out, "%d message(s) marked as read\n", marked)
	case "/search":
		hits, err := c.chat.Search(ctx, search.NewSearchQuery(arg))
		if err != nil {
			fmt.Fprintf(c.out, "search: %v\n", err)
			return
		}
		for _, hit := range hits {
			at := time.UnixMilli(hit.Timestamp).Local().Format(time.DateTime)
			fmt.Fprintf(c.out, "[%s] %s %s: %s (%.2f)\n", hit.ConversationID, at, hit.SenderID, hit.Content, hit.Score)
		}
		fmt.Fprintf(c.out, "%d hit(s)\n", len(hits))
	case "/draft":
		if current, ok := c.chat.Current(); ok {
			fmt.Fprintf(c.out, "draft: %q\n", c.chat.Draft(current.ID))
		}
	case "/help":
		fmt.Fprintln(c.out, help)
	default:
		c.send(ctx, line)
	}
}

func (c *console) send(ctx context.Context, text string) {
	current, ok := c.chat.Current()
	if !ok {
		fmt.Fprintln(c.out, "no open conversation, use /open <id>")
		return
	}
	if _, err := c.chat.SendMessage(ctx, current.ID, text); err != nil {
		fmt.Fprintf(c.out, "not sent: %v\n", err)
	}
}
