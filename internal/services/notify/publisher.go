package notify

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Publisher delivers a payload to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Keyed payloads choose their own partition or message key.
type Keyed interface {
	MessageKey() string
}

func messageKey(payload any) string {
	if k, ok := payload.(Keyed); ok {
		return k.MessageKey()
	}
	return ""
}

// LogPublisher only logs. It backs the "log" driver used in development.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	slog.Info("notification published", "topic", topic, "key", messageKey(payload), "bytes", len(data))
	return nil
}
