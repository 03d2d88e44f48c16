package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Office describes the weekly schedule all notification predicates are
	// evaluated against. Clock fields are "HH:MM" in the office timezone.
	Office OfficeConfig `json:"office"`

	// Responder controls the debounced notification scheduler.
	Responder ResponderConfig `json:"responder"`

	Broadcast BroadcastConfig `json:"broadcast"`
	Staff     StaffConfig     `json:"staff"`
	Reminder  ReminderConfig  `json:"reminder"`
	Mail      MailConfig      `json:"mail"`

	// Storage enables the optional write-only audit trail. The responder
	// never reads state back from it.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Lock is the advisory same-host instance lock. Binding this loopback
	// address fails when another instance already runs against the same bot
	// account; that failure is fatal at startup.
	Lock LockConfig `json:"lock"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// GroupLog is the chat id (as a string) receiving forwarded log lines.
	GroupLog string `json:"group_log,omitempty"`
	// LogThreadID is the forum topic inside GroupLog, 0 for none.
	LogThreadID int `json:"log_thread_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// OfficeConfig holds the static weekly schedule. All clock fields are
// "HH:MM" wall times; bounds are inclusive on both ends.
type OfficeConfig struct {
	Timezone   string `json:"timezone"`
	Open       string `json:"open"`
	Close      string `json:"close"`
	Cutoff     string `json:"cutoff"`
	LunchStart string `json:"lunch_start"`
	LunchEnd   string `json:"lunch_end"`
}

// ResponderConfig holds the debounce and suppression thresholds. The source
// system varied these across iterations; they are configuration here, with
// the defaults below applied when fields are omitted.
//
// Defaults:
//   - flood_delay: "5m"
//   - allow_threshold: "1h"
//   - suppress_window: "2h"
//   - cooldown: "2h"
//   - send_timeout: "15s"
//   - rate_per_sec: 3
type ResponderConfig struct {
	FloodDelay     string `json:"flood_delay,omitempty"`
	AllowThreshold string `json:"allow_threshold,omitempty"`
	SuppressWindow string `json:"suppress_window,omitempty"`
	Cooldown       string `json:"cooldown,omitempty"`
	SendTimeout    string `json:"send_timeout,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

type BroadcastConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a standard cron expression evaluated in the office
	// timezone (default "0 16 * * 1-5").
	Schedule string `json:"schedule,omitempty"`
	// Pin pins the broadcast message in each chat (best-effort).
	Pin bool `json:"pin,omitempty"`
}

type StaffConfig struct {
	// UserIDs are preloaded staff identities.
	UserIDs []int64 `json:"user_ids"`
	// SourceChatIDs are chats whose senders are auto-promoted to staff.
	SourceChatIDs []int64 `json:"source_chat_ids"`
	// CommandOnlyChatIDs are chats where only explicit commands get replies.
	CommandOnlyChatIDs []int64 `json:"command_only_chat_ids"`
}

type ReminderConfig struct {
	Enabled bool `json:"enabled"`
	// Delay before an unanswered conversation is escalated by email.
	Delay string `json:"delay,omitempty"` // default "15m"
}

// MailConfig configures outbound email. OAuth credentials are environment
// variables (GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, GMAIL_REFRESH_TOKEN), not
// config file fields, so the file can be committed without secrets.
type MailConfig struct {
	Enabled      bool   `json:"enabled"`
	Sender       string `json:"sender,omitempty"`
	DefaultTo    string `json:"default_to,omitempty"`
	EscalationTo string `json:"escalation_to,omitempty"`
}

// StorageConfig controls the optional audit trail.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./deskbot_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LockConfig struct {
	// Addr defaults to "127.0.0.1:17337".
	Addr string `json:"addr,omitempty"`
}
