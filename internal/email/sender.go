package email

import "context"

// Message is a plain-text email.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers msg to one recipient. SESClient is the production
// implementation.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient string, msg Message) error

func (f SenderFunc) Send(ctx context.Context, recipient string, msg Message) error {
	return f(ctx, recipient, msg)
}
