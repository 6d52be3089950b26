// Package mq abstracts the queue that feeds notes into the app from outside
// the UI.
package mq

import "context"

// MessageQueue delivers each message at least once. A received message stays
// invisible for the visibility timeout and comes back unless it is deleted.
type MessageQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	// Id is the receipt handle needed to delete the message.
	Id   string
	Body string
	// ReceiveCount is how many times the queue has handed out this message,
	// or 0 when the backend does not report it.
	ReceiveCount int
}
