package bus

import "time"

// InboundMessage is a direct message received from a channel, queued for the
// responder loop.
type InboundMessage struct {
	Channel  string
	SenderID string
	ChatID   string
	Content  string
	Metadata map[string]string
}

// OutboundMessage is a selected reply queued for delivery. ResponseID
// identifies the catalog row that produced it (-1 when none) so the channel
// can report the delivery outcome. Delay is the typing pause the channel
// should simulate before sending.
type OutboundMessage struct {
	Channel    string
	ChatID     string
	Content    string
	ResponseID int64
	Delay      time.Duration
}
