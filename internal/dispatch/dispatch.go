// Package dispatch delivers due notifications to chat. It is the single
// choke point between the scheduling core and the transport: outbound
// sends are rate limited here, announced on the event bus, and recorded in
// the audit store.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"deskbot/internal/eventbus"
	"deskbot/internal/respond"
	"deskbot/internal/storage"
	kit "deskbot/internal/transport"
	"deskbot/pkg/logx"
)

// EventNotificationSent is published on the bus after a successful send.
const EventNotificationSent = "notification.sent"

// SentData is the bus payload for EventNotificationSent.
type SentData struct {
	ChatID int64
	Kind   string
}

type Chat struct {
	adapter kit.Adapter
	limiter *rate.Limiter
	bus     eventbus.Bus
	store   storage.Store // may be nil
	log     logx.Logger
}

func NewChat(adapter kit.Adapter, ratePerSec float64, bus eventbus.Bus, store storage.Store, log logx.Logger) *Chat {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	return &Chat{
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		bus:     bus,
		store:   store,
		log:     log,
	}
}

// Send renders the canned text for the kind and delivers it to the chat.
// The caller's context bounds both the rate-limit wait and the send.
func (c *Chat) Send(ctx context.Context, chatID int64, kind respond.Kind) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	text, mode := respond.MessageFor(kind)
	var opt *kit.SendOptions
	if mode != "" {
		opt = &kit.SendOptions{ParseMode: mode}
	}
	_, err := c.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt)

	c.audit(chatID, kind, err)
	if err != nil {
		return err
	}

	if c.bus != nil {
		c.bus.Publish(eventbus.Event{
			Type: EventNotificationSent,
			Data: SentData{ChatID: chatID, Kind: kind.Key()},
		})
	}
	return nil
}

func (c *Chat) audit(chatID int64, kind respond.Kind, sendErr error) {
	if c.store == nil {
		return
	}
	e := storage.Event{
		At:        time.Now(),
		Component: "responder",
		Action:    "sent",
		ChatID:    chatID,
		Kind:      kind.Key(),
	}
	if sendErr != nil {
		e.Action = "send_failed"
		e.Error = sendErr.Error()
	}
	actx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.AppendEvent(actx, e); err != nil {
		c.log.Warn("audit append failed", logx.Err(err))
	}
}
