// Package gateway defines the outbound messaging channel and its WhatsApp
// HTTP implementation.
package gateway

import (
	"context"
	"time"
)

type ConversationType string

const (
	ConversationReservationConfirmation ConversationType = "reservation_confirmation"
	ConversationWaitlistOffer           ConversationType = "waitlist_offer"
)

type Message struct {
	To           string
	Body         string
	Conversation ConversationType
	// ExpiresAt, when set, tells the channel the message is worthless after
	// this instant (waitlist offers carry their response deadline).
	ExpiresAt *time.Time
}

// Gateway sends one message per triggering event. Failures must surface
// synchronously so the caller can roll back the state that depended on
// delivery.
type Gateway interface {
	Send(ctx context.Context, m Message) error
}

// Noop accepts every send without delivering anything. Used when no
// messaging channel is configured.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
