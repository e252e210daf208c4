package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventImport          EventType = "import"
	EventStatusOverride  EventType = "status_override"
	EventStatusRestore   EventType = "status_restore"
	EventResetChecking   EventType = "reset_checking"
	EventSoldChange      EventType = "sold_change"
	EventFinishedChange  EventType = "finished_change"
	EventAccountUpdate   EventType = "account_update"
	EventAccountDelete   EventType = "account_delete"
	EventSoldSweep       EventType = "sold_sweep"
	EventAuthFailure     EventType = "auth_failure"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	Email     string
	IP        string
	RequestID string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "pool").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.Email != "" {
		logger = logger.With().Str("email", event.Email).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.RequestID == "" {
		event.RequestID = middleware.GetReqID(ctx)
	}
	if event.RequestID != "" {
		logger = logger.With().Str("request_id", event.RequestID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("pool audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills in the caller address before logging. The address
// is RemoteAddr as rewritten by chi's RealIP middleware.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	Log(r.Context(), event)
}
