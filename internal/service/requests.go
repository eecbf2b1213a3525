package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwdesk/fwdesk/internal/model"
	"github.com/fwdesk/fwdesk/internal/store"
)

var (
	// ErrForbidden means the identity lacks the role or ownership required
	// for the operation.
	ErrForbidden = errors.New("access denied")
	// ErrInvalidStatus means the requested status value is not one of the
	// known statuses.
	ErrInvalidStatus = errors.New("invalid status value")
	// ErrValidation wraps input validation failures on create.
	ErrValidation = errors.New("invalid request")
)

// RequestService enforces the request lifecycle: ownership and role checks,
// status transitions, and audit logging of every privileged mutation. Audit
// appends are best-effort: a failed append is logged and the primary
// operation still succeeds.
type RequestService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRequestService creates a RequestService on top of the record store.
func NewRequestService(st *store.Store, logger *slog.Logger) *RequestService {
	return &RequestService{store: st, logger: logger}
}

// List returns all requests for admins, and only the caller's own requests
// otherwise.
func (s *RequestService) List(ctx context.Context, id model.Identity) ([]model.RuleRequest, error) {
	if id.IsAdmin() {
		return s.store.ListRequests(ctx)
	}
	return s.store.ListRequestsByCreator(ctx, id.Username)
}

// Get returns a single request. Non-admins may only see records they created.
func (s *RequestService) Get(ctx context.Context, requestID string, id model.Identity) (*model.RuleRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() && req.CreatedBy != id.Username {
		return nil, ErrForbidden
	}
	return req, nil
}

// Create validates the input and inserts a new pending request owned by the
// caller. Duplicate (source, destination, port, protocol) tuples are rejected
// by the store with the conflicting id.
func (s *RequestService) Create(ctx context.Context, in model.RuleRequestInput, id model.Identity) (*model.RuleRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	requesterName := id.DisplayName
	if requesterName == "" {
		requesterName = id.Username
	}

	req, err := s.store.CreateRequest(ctx, in, id.Username, requesterName)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, id.Username, model.AuditCreateRequest, req.ID)
	return req, nil
}

// UpdateStatus moves a request through its lifecycle. Admin only. Blank notes
// leave the existing reviewer notes untouched.
func (s *RequestService) UpdateStatus(ctx context.Context, requestID string, status model.Status, notes string, id model.Identity) (*model.RuleRequest, error) {
	if !id.IsAdmin() {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	req, err := s.store.UpdateRequestStatus(ctx, requestID, status, notes)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, id.Username, model.AuditUpdateRequest, requestID)
	return req, nil
}

// Audit returns the full audit trail in write order. Undecodable entries are
// skipped by the store; the count is logged here so corruption is never
// silent.
func (s *RequestService) Audit(ctx context.Context, id model.Identity) ([]model.AuditEntry, error) {
	entries, skipped, err := s.store.ReadAudit(ctx)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Error("audit log contains undecodable entries", "skipped", skipped)
	}
	return entries, nil
}

// Install records an approved-rule installation trigger. The push to firewall
// hardware is handled by an external installer; here it is audited and
// acknowledged. Admin only.
func (s *RequestService) Install(ctx context.Context, id model.Identity) error {
	if !id.IsAdmin() {
		return ErrForbidden
	}
	s.audit(ctx, id.Username, model.AuditInstallRules, "")
	return nil
}

// audit appends an entry without letting a failure surface to the caller.
// The append uses a context detached from request cancellation so a client
// disconnect after the primary write cannot lose the trail entry.
func (s *RequestService) audit(ctx context.Context, username, action, resourceID string) {
	entry := model.AuditEntry{
		Timestamp:  time.Now().UTC(),
		Username:   username,
		Action:     action,
		ResourceID: resourceID,
	}
	if err := s.store.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("audit append failed",
			"username", username, "action", action, "resource_id", resourceID, "error", err)
	}
}
