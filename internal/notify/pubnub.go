package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubnubgo "github.com/pubnub/go/v7"
)

// PubNubConfig holds the keyset used by PubNubForwarder.
type PubNubConfig struct {
	PublishKey, SubscribeKey, SecretKey, UserID string
	// ChannelPrefix defaults to "queue-"; the provider key is appended.
	ChannelPrefix string
}

// PubNubForwarder publishes each event to the provider's PubNub channel so
// display boards and phones can follow a queue without polling.
type PubNubForwarder struct {
	prefix  string
	publish func(channel string, message string) error
}

var _ Forwarder = (*PubNubForwarder)(nil)

// NewPubNubForwarder builds a forwarder from cfg.
func NewPubNubForwarder(cfg PubNubConfig) (*PubNubForwarder, error) {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil, errors.New("pubnub: publish and subscribe keys are required")
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "queue-backend"
	}

	pnCfg := pubnubgo.NewConfigWithUserId(pubnubgo.UserId(userID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pn := pubnubgo.NewPubNub(pnCfg)

	return newPubNubForwarder(cfg.ChannelPrefix, func(channel, message string) error {
		_, _, err := pn.Publish().Channel(channel).Message(message).Execute()
		return err
	}), nil
}

func newPubNubForwarder(prefix string, publish func(channel, message string) error) *PubNubForwarder {
	if prefix == "" {
		prefix = "queue-"
	}
	return &PubNubForwarder{prefix: prefix, publish: publish}
}

// Name implements Forwarder.
func (f *PubNubForwarder) Name() string { return "pubnub" }

// Channel returns the PubNub channel for provider.
func (f *PubNubForwarder) Channel(provider string) string { return f.prefix + provider }

// Forward implements Forwarder.
func (f *PubNubForwarder) Forward(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("pubnub: marshal event: %w", err)
	}
	if err := f.publish(f.Channel(ev.ProviderKey), string(body)); err != nil {
		return fmt.Errorf("pubnub: publish: %w", err)
	}
	return nil
}
