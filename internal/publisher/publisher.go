// Package publisher announces finished runs to downstream consumers.
package publisher

import "context"

// Publisher sends one JSON-encodable payload and returns its message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
