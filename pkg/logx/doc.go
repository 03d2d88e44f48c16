// Package logx provides the process-wide structured logger.
//
// It wraps zerolog behind a small Field/Logger API so packages don't import
// zerolog directly, and supports swapping sinks (console, file, Telegram
// operator chat) at runtime via Service.Apply.
package logx
