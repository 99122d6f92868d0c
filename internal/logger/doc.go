// Package logger is a thin layer over zap used by every polymarket command.
//
// It keeps a global sugared logger that writes human-readable lines to stderr,
// so that command output on stdout stays clean for scripting. Loggers travel
// through context.Context: WithName and WithKV derive scoped loggers and the
// level helpers (InfoKV, WarnKV, ...) pick them up again via FromContext.
package logger
