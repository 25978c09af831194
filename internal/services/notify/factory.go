package notify

import (
	"fmt"

	"ticket-platform/config"
)

// NewPublisher builds the broker publisher named by cfg.NotifyDriver.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	switch cfg.NotifyDriver {
	case "pubnub":
		return NewPubNubPublisher(PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}), nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers), nil
	case "log":
		return LogPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver: %s", cfg.NotifyDriver)
	}
}
