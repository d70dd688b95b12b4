package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger used by the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("LLMED_LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// opLog logs the start and end of one API operation at the request's level.
type opLog struct {
	lvl   LogLevel
	log   zerolog.Logger
	start time.Time
}

func startOp(r *http.Request, op, modelID string) *opLog {
	ctx := zlog.With().Str("op", op).Str("path", r.URL.Path)
	if modelID != "" {
		ctx = ctx.Str("model", modelID)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ctx = ctx.Str("request_id", rid)
	}
	l := &opLog{lvl: requestLogLevel(r), log: ctx.Logger(), start: time.Now()}
	if l.lvl >= LevelInfo {
		l.log.Info().Msg(op + " start")
	}
	return l
}

func (l *opLog) end(status int, err error) {
	switch {
	case err != nil && l.lvl >= LevelError:
		l.log.Error().Int("status", status).Dur("dur", time.Since(l.start)).Err(err).Msg("request failed")
	case err == nil && l.lvl >= LevelInfo:
		l.log.Info().Int("status", status).Dur("dur", time.Since(l.start)).Msg("request done")
	}
}

// debug returns a debug event, or nil when the request is not at debug level.
func (l *opLog) debug() *zerolog.Event {
	if l.lvl < LevelDebug {
		return nil
	}
	return l.log.Debug()
}
