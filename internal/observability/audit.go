package observability

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEvent represents a structured session event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	TabID     string                 `json:"tab_id,omitempty"`
	Action    string                 `json:"action"` // e.g., "login", "auto_logout", "claim"
	Status    string                 `json:"status"` // "success", "failure"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AuditLogger handles recording and persisting audit events
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.Mutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger instance.
// Events are discarded until InitAuditLogger is called.
func GetAuditLogger() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditInst == nil {
		auditInst = &AuditLogger{logger: zerolog.Nop()}
	}
	return auditInst
}

// InitAuditLogger points the global audit logger at a file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	auditMu.Lock()
	previous := auditInst
	auditInst = &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	auditMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// Record emits an audit event
func (a *AuditLogger) Record(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("tab_id", event.TabID).
		Str("action", event.Action).
		Str("status", event.Status).
		Time("at", event.Timestamp)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// RecordSessionAudit records a session lifecycle event for a tab
func RecordSessionAudit(tabID, action, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(AuditEvent{
		Type:     "session",
		TabID:    tabID,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordRelayAudit records an authentication event on the broadcast relay
func RecordRelayAudit(action, status string, metadata map[string]interface{}) {
	GetAuditLogger().Record(AuditEvent{
		Type:     "relay",
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}
