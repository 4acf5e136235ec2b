package domain

// AuditStatus is the outcome recorded against an audit event.
type AuditStatus string

const (
	AuditOK       AuditStatus = "ok"
	AuditError    AuditStatus = "error"
	AuditDenied   AuditStatus = "denied"
)

// AuditEventSchemaVersion is the current wire schema for AuditEvent.
const AuditEventSchemaVersion = 1

// AuditEvent is the structured record emitted for every command, success or
// failure, per spec §3/§4.8 step 9. It is durable (see internal/audit),
// unlike Signal which is best-effort and in-memory only.
type AuditEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	Action        string         `json:"action"`
	Status        AuditStatus    `json:"status"`
	SessionID     SessionID      `json:"session_id"`
	CorrelationID CorrelationID  `json:"correlation_id,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Source        string         `json:"source,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	RecordedAt    Timestamp      `json:"recorded_at"`
}

// ParentRevisionKey is the metadata key carrying lineage back to the
// revision a command was applied against (spec §3: "incl. lineage:
// parent_revision_id").
const ParentRevisionKey = "parent_revision_id"

// NewAuditEvent constructs an AuditEvent with schema_version and
// recorded_at filled in.
func NewAuditEvent(eventType, action string, status AuditStatus, sessionID SessionID, correlationID CorrelationID) AuditEvent {
	return AuditEvent{
		SchemaVersion: AuditEventSchemaVersion,
		EventType:     eventType,
		Action:        action,
		Status:        status,
		SessionID:     sessionID,
		CorrelationID: correlationID,
		Metadata:      map[string]any{},
		RecordedAt:    Now(),
	}
}

// WithMetadata sets a metadata key and returns the same event, for fluent
// construction at the call site.
func (e AuditEvent) WithMetadata(key string, value any) AuditEvent {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata[key] = value
	return e
}
