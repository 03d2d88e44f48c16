package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"deskbot/internal/eventbus"
	"deskbot/internal/respond"
	kit "deskbot/internal/transport"
	"deskbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	sends []sendCall
	err   error
}

type sendCall struct {
	to   kit.ChatTarget
	text string
	mode string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) Pin(context.Context, kit.MessageRef) error      { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := sendCall{to: to, text: text}
	if opt != nil {
		call.mode = opt.ParseMode
	}
	f.sends = append(f.sends, call)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sends)}, f.err
}

func TestSendDeliversCannedText(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	c := NewChat(ad, 100, bus, nil, logx.Nop())
	if err := c.Send(context.Background(), 42, respond.KindWeekend); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(ad.sends))
	}
	wantText, _ := respond.MessageFor(respond.KindWeekend)
	if ad.sends[0].text != wantText || ad.sends[0].to.ChatID != 42 {
		t.Fatalf("wrong send: %+v", ad.sends[0])
	}

	select {
	case e := <-events:
		if e.Type != EventNotificationSent {
			t.Fatalf("event type = %q", e.Type)
		}
		data, ok := e.Data.(SentData)
		if !ok || data.ChatID != 42 || data.Kind != "weekend" {
			t.Fatalf("event data = %#v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event published")
	}
}

func TestSendFailurePropagatesWithoutEvent(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{err: errors.New("telegram down")}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	c := NewChat(ad, 100, bus, nil, logx.Nop())
	if err := c.Send(context.Background(), 42, respond.KindLunch); err == nil {
		t.Fatal("expected send error")
	}

	select {
	case e := <-events:
		t.Fatalf("unexpected bus event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendHonorsContextDuringRateWait(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	// 1 token per 10s with burst 1: the second send must wait.
	c := NewChat(ad, 0.1, nil, nil, logx.Nop())

	if err := c.Send(context.Background(), 1, respond.KindWeekend); err != nil {
		t.Fatalf("first send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := c.Send(ctx, 1, respond.KindWeekend); err == nil {
		t.Fatal("expected context deadline during rate wait")
	}
}
