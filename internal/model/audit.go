package model

import "time"

// Audit action names recorded for privileged operations.
const (
	AuditCreateRequest = "createRequest"
	AuditUpdateRequest = "updateRequest"
	AuditInstallRules  = "installRules"
)

// AuditEntry is an immutable record of a privileged action. Entries are
// append-only and ordered by write time.
type AuditEntry struct {
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Username   string    `json:"username" db:"username"`
	Action     string    `json:"action" db:"action"`
	ResourceID string    `json:"resourceId" db:"resource_id"`
}
