package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dmpilot-bot/dmpilot/pkg/bus"
)

// Loop pumps inbound messages from the bus through the engine and publishes
// replies, and triggers learning passes on the configured cron schedule.
type Loop struct {
	bus      *bus.MessageBus
	svc      *Service
	learner  *Learner
	schedule string
	gron     *gronx.Gronx
	log      *slog.Logger

	lastLearn time.Time
}

func NewLoop(messageBus *bus.MessageBus, svc *Service, learner *Learner, schedule string, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		bus:      messageBus,
		svc:      svc,
		learner:  learner,
		schedule: schedule,
		gron:     gronx.New(),
		log:      log.With("component", "responder"),
	}
}

// Run blocks until ctx is cancelled. Each inbound message is handled in its
// own goroutine; the engine's per-user locking keeps one user's messages
// ordered while different users proceed concurrently.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info("responder loop started", "learning_schedule", l.schedule)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	inbound := make(chan bus.InboundMessage)
	go func() {
		defer close(inbound)
		for {
			msg, ok := l.bus.ConsumeInbound(ctx)
			if !ok {
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("responder loop stopped")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.log.Info("responder loop stopped, inbound closed")
				return
			}
			go l.handleInbound(ctx, msg)
		case <-ticker.C:
			l.maybeLearn(ctx)
		}
	}
}

func (l *Loop) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	reply, err := l.svc.HandleMessage(ctx, msg.SenderID, msg.Content)
	if err != nil {
		// The engine still produced a usable reply; deliver it and log the
		// underlying failure.
		l.log.Error("handle message", "channel", msg.Channel, "sender_id", msg.SenderID, "error", err)
	}

	l.bus.PublishOutbound(bus.OutboundMessage{
		Channel:    msg.Channel,
		ChatID:     msg.ChatID,
		Content:    reply.Text,
		ResponseID: reply.ResponseID,
		Delay:      reply.Delay,
	})
}

// maybeLearn runs a learning pass when the cron schedule is due. The
// last-run guard keeps one due minute from firing twice.
func (l *Loop) maybeLearn(ctx context.Context) {
	if l.learner == nil {
		return
	}

	now := time.Now().Truncate(time.Minute)
	if now.Equal(l.lastLearn) {
		return
	}
	due, err := l.gron.IsDue(l.schedule, now)
	if err != nil {
		l.log.Error("check learning schedule", "schedule", l.schedule, "error", err)
		return
	}
	if !due {
		return
	}
	l.lastLearn = now

	go func() {
		added, err := l.learner.Run(ctx)
		if err != nil {
			l.log.Error("learning pass failed", "error", err)
			return
		}
		l.log.Info("learning pass completed", "patterns_added", added)
	}()
}
