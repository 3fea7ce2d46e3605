package event

import (
	"github.com/pusher/pusher-http-go/v5"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/lib/logger/sl"
)

// PusherEvent pushes round audit events to per-tenant channels.
type PusherEvent struct {
	log    *slog.Logger
	pusher *pusher.Client
}

func NewPusherEvent(log *slog.Logger, cfg config.Pusher) *PusherEvent {
	return &PusherEvent{
		log: log,
		pusher: &pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
		},
	}
}

func (p *PusherEvent) TriggerEvent(channel string, eventName string, data map[string]interface{}) error {
	if err := p.pusher.Trigger(channel, eventName, data); err != nil {
		p.log.Error("failed to trigger pusher event",
			sl.Err(err),
			slog.String("channel", channel),
			slog.String("event", eventName),
		)

		return err
	}

	return nil
}
