package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"deskbot/internal/ledger"
	"deskbot/internal/mailer"
	"deskbot/internal/office"
	"deskbot/internal/reminder"
	"deskbot/internal/respond"
	"deskbot/internal/roster"
	"deskbot/internal/transcript"
	kit "deskbot/internal/transport"
	"deskbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	sends []sentText
}

type sentText struct {
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
	st := sentText{to: to, text: text}
	if opt != nil {
		st.mode = opt.ParseMode
	}
	f.sends = append(f.sends, st)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sends)}, nil
}

func (f *fakeAdapter) all() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentText, len(f.sends))
	copy(out, f.sends)
	return out
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []respond.Kind
	ch    chan respond.Kind
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{ch: make(chan respond.Kind, 8)}
}

func (f *fakeDispatcher) Send(_ context.Context, _ int64, kind respond.Kind) error {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	f.ch <- kind
	return nil
}

type fakeMailer struct {
	mu      sync.Mutex
	enabled bool
	sent    []mailer.Message
}

func (f *fakeMailer) Enabled() bool { return f.enabled }
func (f *fakeMailer) Send(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

type fixture struct {
	router *Router
	ad     *fakeAdapter
	disp   *fakeDispatcher
	mail   *fakeMailer
	led    *ledger.Ledger
	now    time.Time
}

// newFixture wires a router around real collaborators and fake edges.
// Clock: Monday 2026-03-02, office hours 9-17 UTC, cutoff 16:30.
func newFixture(t *testing.T, at time.Time, st Settings) *fixture {
	t.Helper()
	sched, err := office.NewSchedule(time.UTC, 9*60, 17*60, 16*60+30, 12*60+30, 13*60+30)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}

	ad := &fakeAdapter{}
	disp := newFakeDispatcher()
	led := ledger.New()
	buf := transcript.New(5)
	mail := &fakeMailer{enabled: true}

	resp := respond.NewScheduler(sched, led, disp, respond.Settings{
		FloodDelay:     20 * time.Millisecond,
		SuppressWindow: 2 * time.Hour,
		Cooldown:       2 * time.Hour,
		SendTimeout:    time.Second,
	}, logx.Nop())
	resp.SetClock(func() time.Time { return at })
	t.Cleanup(resp.Stop)

	rem := reminder.New(sched, time.Hour, "ops@example.com", mail, buf, led, logx.Nop())
	t.Cleanup(rem.Stop)

	ros := roster.New([]int64{900}, []int64{-500}, logx.Nop())

	r := New(ad, sched, resp, ros, led, buf, rem, mail, nil, st, logx.Nop())
	r.now = func() time.Time { return at }
	return &fixture{router: r, ad: ad, disp: disp, mail: mail, led: led, now: at}
}

func msg(chatID, fromID int64, text string) *kit.Message {
	return &kit.Message{
		ID:           1,
		ChatID:       chatID,
		ChatTitle:    "ACME Trucking",
		FromID:       fromID,
		FromUsername: "someone",
		FromName:     "Someone",
		Text:         text,
		IsGroup:      true,
	}
}

func TestCustomerMessageAfterHoursArmsDebounce(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "please add a truck"))

	select {
	case kind := <-fx.disp.ch:
		if kind != respond.KindAfterClose {
			t.Fatalf("kind = %v, want after_close", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced notification never fired")
	}
	if len(fx.ad.all()) != 0 {
		t.Fatal("no immediate reply expected for after-hours message")
	}
}

func TestStaffMessageCancelsAndMarks(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "anyone there?"))
	fx.router.handleMessage(context.Background(), msg(1, 900, "on it, give me a minute"))

	select {
	case kind := <-fx.disp.ch:
		t.Fatalf("notification fired despite staff reply: %v", kind)
	case <-time.After(100 * time.Millisecond):
	}
	if _, ok := fx.led.StaffReplyAge(1, fx.now.Add(time.Minute)); !ok {
		t.Fatal("staff reply not recorded in ledger")
	}
}

func TestStaffPromotionViaSourceChat(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), Settings{})

	// User 42 posts in the staff source chat, then replies to a customer.
	fx.router.handleMessage(context.Background(), msg(-500, 42, "joining the desk"))
	fx.router.handleMessage(context.Background(), msg(1, 7, "need help"))
	fx.router.handleMessage(context.Background(), msg(1, 42, "hello, looking now"))

	select {
	case kind := <-fx.disp.ch:
		t.Fatalf("notification fired despite promoted staff reply: %v", kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCommandOnlyChatStaysSilent(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), Settings{
		CommandOnlyChats: []int64{1},
	})

	fx.router.handleMessage(context.Background(), msg(1, 7, "hello?"))

	select {
	case kind := <-fx.disp.ch:
		t.Fatalf("command-only chat got a notification: %v", kind)
	case <-time.After(100 * time.Millisecond):
	}

	// Commands still work there.
	fx.router.handleMessage(context.Background(), msg(1, 7, "/emails"))
	sends := fx.ad.all()
	if len(sends) != 1 || !strings.Contains(sends[0].text, "coi@myaisagency.com") {
		t.Fatalf("command in silent chat not answered: %+v", sends)
	}
}

func TestCannedCommandCountsAsStaffTouch(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC), Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "anyone?"))
	fx.router.handleMessage(context.Background(), msg(1, 900, "/rules@SomeBot"))

	sends := fx.ad.all()
	if len(sends) != 1 || sends[0].mode != kit.ParseModeMarkdown {
		t.Fatalf("rules reply missing or wrong mode: %+v", sends)
	}
	select {
	case kind := <-fx.disp.ch:
		t.Fatalf("notification fired despite command reply: %v", kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTranscriptCommand(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "/transcript"))
	sends := fx.ad.all()
	if len(sends) != 1 || sends[0].text != noTranscriptMessage {
		t.Fatalf("empty transcript reply: %+v", sends)
	}

	fx.router.handleMessage(context.Background(), msg(1, 7, "add driver John"))
	fx.router.handleMessage(context.Background(), msg(1, 7, "/transcript"))
	sends = fx.ad.all()
	last := sends[len(sends)-1]
	if !strings.Contains(last.text, "add driver John") {
		t.Fatalf("transcript reply = %q", last.text)
	}
}

func TestWeekendHelloRepliesImmediatelyOnce(t *testing.T) {
	t.Parallel()
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	fx := newFixture(t, saturday, Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "hi"))
	fx.router.handleMessage(context.Background(), msg(1, 7, "hello"))

	sends := fx.ad.all()
	if len(sends) != 1 {
		t.Fatalf("sends = %d, want 1 (cooldown gates the repeat)", len(sends))
	}
	wantText, _ := respond.MessageFor(respond.KindWeekend)
	if sends[0].text != wantText {
		t.Fatalf("wrong greeting reply: %q", sends[0].text)
	}

	// The debounced weekend notification respects the immediate one.
	select {
	case kind := <-fx.disp.ch:
		t.Fatalf("duplicate weekend notification: %v", kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCertificateKeywordDuringOpenHours(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Settings{})

	fx.router.handleMessage(context.Background(), msg(1, 7, "I need a COI for a new broker"))
	fx.router.handleMessage(context.Background(), msg(1, 7, "certificate please"))

	sends := fx.ad.all()
	if len(sends) != 1 || !strings.Contains(sends[0].text, "Certificate of Insurance") {
		t.Fatalf("coi reply: %+v", sends)
	}
}

func TestEscalateStaffOnly(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Settings{
		EscalationTo: "endorsements@example.com",
	})

	fx.router.handleMessage(context.Background(), msg(1, 7, "something urgent"))
	fx.router.handleMessage(context.Background(), msg(1, 7, "/escalate"))

	fx.mail.mu.Lock()
	n := len(fx.mail.sent)
	fx.mail.mu.Unlock()
	if n != 0 {
		t.Fatal("customer must not be able to escalate")
	}

	fx.router.handleMessage(context.Background(), msg(1, 900, "/escalate"))
	fx.mail.mu.Lock()
	defer fx.mail.mu.Unlock()
	if len(fx.mail.sent) != 1 {
		t.Fatalf("escalations = %d, want 1", len(fx.mail.sent))
	}
	got := fx.mail.sent[0]
	if got.To != "endorsements@example.com" {
		t.Fatalf("To = %q", got.To)
	}
	if !strings.Contains(got.Body, "something urgent") {
		t.Fatalf("escalation body missing transcript: %q", got.Body)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"/rules", "rules"},
		{"/Rules@MyBot now", "rules"},
		{"  /emails  ", "emails"},
		{"no command", ""},
		{"/", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := parseCommand(tc.in); got != tc.want {
			t.Errorf("parseCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
