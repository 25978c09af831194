package notify

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
)

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// channelPublisher is the part of the PubNub SDK the publisher uses.
type channelPublisher interface {
	PublishMessage(channel string, message any) (int, error)
}

type pubnubSDK struct {
	pn *pubnub.PubNub
}

func (s pubnubSDK) PublishMessage(channel string, message any) (int, error) {
	_, st, err := s.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return st.StatusCode, err
}

// PubNubPublisher publishes each topic to the PubNub channel of the same name.
type PubNubPublisher struct {
	client channelPublisher
}

func NewPubNubPublisher(cfg PubNubConfig) *PubNubPublisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey

	return &PubNubPublisher{client: pubnubSDK{pn: pubnub.NewPubNub(pnConfig)}}
}

func (p *PubNubPublisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	code, err := p.client.PublishMessage(topic, payload)
	if err != nil {
		return fmt.Errorf("pubnub publish to %s: %w", topic, err)
	}
	if code >= 300 {
		return fmt.Errorf("pubnub publish to %s: status %d", topic, code)
	}
	return nil
}
