package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/dmpilot-bot/dmpilot/pkg/bus"
)

// ConsoleChannel is an interactive terminal channel for trying the bot
// locally. Every line typed becomes an inbound message from a fixed local
// user.
type ConsoleChannel struct {
	*BaseChannel
	rl     *readline.Instance
	log    *slog.Logger
	cancel context.CancelFunc
}

const (
	consoleUserID = "local"
	consoleChatID = "console"
)

func NewConsoleChannel(bus *bus.MessageBus) (*ConsoleChannel, error) {
	rl, err := readline.New("you> ")
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}

	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", bus, nil),
		rl:          rl,
		log:         slog.Default().With("channel", "console"),
	}, nil
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	readCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setRunning(true)

	go c.readLoop(readCtx)
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.cancel != nil {
		c.cancel()
	}
	return c.rl.Close()
}

func (c *ConsoleChannel) readLoop(ctx context.Context) {
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				c.log.Debug("console input closed")
				return
			}
			c.log.Error("read console line", "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		c.HandleMessage(consoleUserID, consoleChatID, line, nil)
	}
}

// Send waits out the typing pause, then prints the reply above the prompt.
func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("console channel not running")
	}

	if msg.Delay > 0 {
		timer := time.NewTimer(msg.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := fmt.Fprintf(c.rl.Stdout(), "bot> %s\n", msg.Content)
	if err != nil {
		return fmt.Errorf("write console reply: %w", err)
	}
	return nil
}
