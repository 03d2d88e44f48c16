// Package app wires configuration, logging, transport, and the responder
// services into one process and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deskbot/internal/broadcast"
	"deskbot/internal/config"
	"deskbot/internal/dispatch"
	"deskbot/internal/eventbus"
	"deskbot/internal/ledger"
	"deskbot/internal/mailer"
	"deskbot/internal/office"
	"deskbot/internal/reminder"
	"deskbot/internal/respond"
	"deskbot/internal/roster"
	"deskbot/internal/router"
	"deskbot/internal/runtime/supervisor"
	"deskbot/internal/storage"
	"deskbot/internal/transcript"
	kit "deskbot/internal/transport"
	"deskbot/internal/transport/telegram/adapter"
	"deskbot/pkg/logx"
)

type StopReason string

const (
	StopReasonSignal StopReason = "signal"
	StopReasonFatal  StopReason = "fatal"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	lock  *instanceLock

	adapter kit.Adapter

	sched  *office.Schedule
	led    *ledger.Ledger
	ros    *roster.Roster
	buf    *transcript.Buffer
	mail   mailer.Sender
	rem    *reminder.Reminder
	resp   *respond.Scheduler
	bcast  *broadcast.Broadcaster
	router *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := adapter.New(adapter.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap logging with the Telegram sink disabled, point it at the
	// log chat, then apply the real config; Apply would otherwise warn
	// about a missing target.
	baseLogCfg := mapLogConfig(cfg, false)
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))
	setLogTarget(logSvc, cfg)
	logSvc.Apply(mapLogConfig(cfg, cfg.Logging.Telegram.Enabled))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	sched, err := mapOfficeSchedule(cfg)
	if err != nil {
		return nil, err
	}

	led := ledger.New()
	buf := transcript.New(transcript.DefaultDepth)
	ros := roster.New(cfg.Staff.UserIDs, cfg.Staff.SourceChatIDs,
		log.With(logx.String("comp", "roster")))

	var mail mailer.Sender = mailer.Nop{}
	if cfg.Mail.Enabled {
		g, ok, err := mailer.NewGmail(context.Background(), cfg.Mail.Sender,
			log.With(logx.String("comp", "mailer")))
		if err != nil {
			return nil, err
		}
		if ok {
			mail = g
		} else {
			log.Warn("mail enabled but gmail credentials missing in environment; email disabled")
		}
	}

	respSettings, ratePerSec, err := mapResponderSettings(cfg)
	if err != nil {
		return nil, err
	}

	chatDispatch := dispatch.NewChat(ad, ratePerSec, bus, store,
		log.With(logx.String("comp", "dispatch")))
	resp := respond.NewScheduler(sched, led, chatDispatch, respSettings,
		log.With(logx.String("comp", "respond")))

	remDelay, err := config.ParseDurationOrDefault("reminder.delay", cfg.Reminder.Delay, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	remSender := mail
	if !cfg.Reminder.Enabled {
		remSender = mailer.Nop{}
	}
	rem := reminder.New(sched, remDelay, cfg.Mail.DefaultTo, remSender, buf, led,
		log.With(logx.String("comp", "reminder")))

	bcast, err := broadcast.New(sched, led, ad, store, mapBroadcastSettings(cfg),
		log.With(logx.String("comp", "broadcast")))
	if err != nil {
		return nil, err
	}

	rtr := router.New(ad, sched, resp, ros, led, buf, rem, mail, store,
		mapRouterSettings(cfg, respSettings),
		log.With(logx.String("comp", "router")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sched:   sched,
		led:     led,
		ros:     ros,
		buf:     buf,
		mail:    mail,
		rem:     rem,
		resp:    resp,
		bcast:   bcast,
		router:  rtr,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()

	lock, err := acquireInstanceLock(cfg.Lock.Addr)
	if err != nil {
		return err
	}
	a.lock = lock

	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go("broadcast.poll", a.bcast.Run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the newest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated reloaded config into the running services.
// Sections that cannot change live (office schedule, storage, telegram
// token) log a restart-required warning instead.
func (a *App) applyConfig(prev, cfg *config.Config) {
	setLogTarget(a.logs, cfg)
	a.logs.Apply(mapLogConfig(cfg, cfg.Logging.Telegram.Enabled))

	if prev.Office != cfg.Office {
		a.log.Warn("office schedule changed; restart required for changes to take effect")
	}
	if (prev.Storage == nil) != (cfg.Storage == nil) ||
		(prev.Storage != nil && cfg.Storage != nil && *prev.Storage != *cfg.Storage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if prev.Telegram.Token != cfg.Telegram.Token {
		a.log.Warn("telegram token changed; restart required for changes to take effect")
	}

	respSettings, _, err := mapResponderSettings(cfg)
	if err != nil {
		a.log.Warn("invalid responder config; keeping previous", logx.Err(err))
	} else {
		a.resp.Apply(respSettings)
		a.router.Apply(mapRouterSettings(cfg, respSettings))
	}

	if err := a.bcast.Apply(mapBroadcastSettings(cfg)); err != nil {
		a.log.Warn("invalid broadcast config; keeping previous", logx.Err(err))
	}

	if d, err := config.ParseDurationOrDefault("reminder.delay", cfg.Reminder.Delay, 15*time.Minute); err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else {
		a.rem.SetDelay(d)
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component cannot
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("respond", 2*time.Second, func(context.Context) error { a.resp.Stop(); return nil })
	step("reminder", 1*time.Second, func(context.Context) error { a.rem.Stop(); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	if a.lock != nil {
		_ = a.lock.Release()
	}

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// ---- config mapping ----

func setLogTarget(svc *logx.Service, cfg *config.Config) {
	if strings.TrimSpace(cfg.Telegram.GroupLog) != "" {
		if chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64); err == nil {
			svc.SetTelegramTarget(chatID, cfg.Telegram.LogThreadID)
			return
		}
	}
	svc.SetTelegramTarget(0, 0)
}

func mapLogConfig(cfg *config.Config, telegramEnabled bool) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    telegramEnabled,
			ThreadID:   cfg.Telegram.LogThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

func mapOfficeSchedule(cfg *config.Config) (*office.Schedule, error) {
	tz := strings.TrimSpace(cfg.Office.Timezone)
	if tz == "" {
		tz = "America/Chicago"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("office.timezone: invalid %q: %w", tz, err)
	}

	parse := func(field, raw, def string) (office.Clock, error) {
		if strings.TrimSpace(raw) == "" {
			raw = def
		}
		c, err := office.ParseClock(raw)
		if err != nil {
			return 0, fmt.Errorf("office.%s: %w", field, err)
		}
		return c, nil
	}
	open, err := parse("open", cfg.Office.Open, "09:00")
	if err != nil {
		return nil, err
	}
	close, err := parse("close", cfg.Office.Close, "17:00")
	if err != nil {
		return nil, err
	}
	cutoff, err := parse("cutoff", cfg.Office.Cutoff, "16:30")
	if err != nil {
		return nil, err
	}
	lunchStart, err := parse("lunch_start", cfg.Office.LunchStart, "12:30")
	if err != nil {
		return nil, err
	}
	lunchEnd, err := parse("lunch_end", cfg.Office.LunchEnd, "13:30")
	if err != nil {
		return nil, err
	}
	return office.NewSchedule(loc, open, close, cutoff, lunchStart, lunchEnd)
}

// mapResponderSettings parses the responder tunables. allow_threshold is
// not consumed directly; it is validated against suppress_window so an
// operator cannot configure a staff reply to count as both fresh and stale.
func mapResponderSettings(cfg *config.Config) (respond.Settings, float64, error) {
	flood, err := config.ParseDurationOrDefault("responder.flood_delay", cfg.Responder.FloodDelay, 5*time.Minute)
	if err != nil {
		return respond.Settings{}, 0, err
	}
	allow, err := config.ParseDurationOrDefault("responder.allow_threshold", cfg.Responder.AllowThreshold, time.Hour)
	if err != nil {
		return respond.Settings{}, 0, err
	}
	suppress, err := config.ParseDurationOrDefault("responder.suppress_window", cfg.Responder.SuppressWindow, 2*time.Hour)
	if err != nil {
		return respond.Settings{}, 0, err
	}
	cooldown, err := config.ParseDurationOrDefault("responder.cooldown", cfg.Responder.Cooldown, 2*time.Hour)
	if err != nil {
		return respond.Settings{}, 0, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("responder.send_timeout", cfg.Responder.SendTimeout, 15*time.Second)
	if err != nil {
		return respond.Settings{}, 0, err
	}
	if allow > suppress {
		return respond.Settings{}, 0, fmt.Errorf("responder.allow_threshold (%s) must be <= responder.suppress_window (%s)", allow, suppress)
	}
	rate := float64(cfg.Responder.RatePerSec)
	if rate <= 0 {
		rate = 3
	}
	return respond.Settings{
		FloodDelay:     flood,
		SuppressWindow: suppress,
		Cooldown:       cooldown,
		SendTimeout:    sendTimeout,
	}, rate, nil
}

func mapBroadcastSettings(cfg *config.Config) broadcast.Settings {
	return broadcast.Settings{
		Enabled:          cfg.Broadcast.Enabled,
		Schedule:         cfg.Broadcast.Schedule,
		Pin:              cfg.Broadcast.Pin,
		CommandOnlyChats: cfg.Staff.CommandOnlyChatIDs,
	}
}

func mapRouterSettings(cfg *config.Config, rs respond.Settings) router.Settings {
	return router.Settings{
		CommandOnlyChats: cfg.Staff.CommandOnlyChatIDs,
		EscalationTo:     cfg.Mail.EscalationTo,
		ReplyCooldown:    rs.Cooldown,
		SendTimeout:      rs.SendTimeout,
	}
}

func validateConfig(cfg *config.Config) error {
	if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second); err != nil {
		return err
	}
	if _, err := mapOfficeSchedule(cfg); err != nil {
		return err
	}
	if _, _, err := mapResponderSettings(cfg); err != nil {
		return err
	}
	if err := broadcast.ValidateSchedule(cfg.Broadcast.Schedule); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("reminder.delay", cfg.Reminder.Delay, 15*time.Minute); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}
