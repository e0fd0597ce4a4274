package channels

import (
	"context"
	"testing"

	"github.com/dmpilot-bot/dmpilot/pkg/bus"
)

func TestBaseChannel_IsAllowed(t *testing.T) {
	cases := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty_list_allows_everyone", nil, "12345", true},
		{"exact_id_match", []string{"12345"}, "12345", true},
		{"id_not_listed", []string{"12345"}, "99999", false},
		{"compound_id_part", []string{"12345"}, "12345|alice", true},
		{"compound_username_part", []string{"alice"}, "12345|alice", true},
		{"at_prefix_stripped", []string{"@alice"}, "12345|alice", true},
		{"blank_entries_ignored", []string{"  ", ""}, "12345", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewBaseChannel("test", bus.NewMessageBus(), tc.allowList)
			if got := c.IsAllowed(tc.senderID); got != tc.want {
				t.Fatalf("IsAllowed(%q) = %v, want %v", tc.senderID, got, tc.want)
			}
		})
	}
}

func TestBaseChannel_HandleMessagePublishesInbound(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	c := NewBaseChannel("test", mb, nil)
	c.HandleMessage("u1", "chat1", "hello there", map[string]string{"message_id": "m1"})

	msg, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatalf("expected inbound message")
	}
	if msg.Channel != "test" || msg.SenderID != "u1" || msg.ChatID != "chat1" || msg.Content != "hello there" {
		t.Fatalf("unexpected inbound message: %+v", msg)
	}
	if msg.Metadata["message_id"] != "m1" {
		t.Fatalf("expected metadata preserved, got %v", msg.Metadata)
	}
}

func TestBaseChannel_HandleMessageDropsDisallowedSender(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	c := NewBaseChannel("test", mb, []string{"someone-else"})
	c.HandleMessage("u1", "chat1", "hello", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatalf("expected no inbound message from disallowed sender")
	}
}
