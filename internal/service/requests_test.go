package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fwdesk/fwdesk/internal/model"
	"github.com/fwdesk/fwdesk/internal/store"
)

var (
	alice = model.Identity{Username: "alice", DisplayName: "Alice Example", Role: model.RoleUser}
	bob   = model.Identity{Username: "bob", Role: model.RoleUser}
	admin = model.Identity{Username: "root", Role: model.RoleAdmin}
)

func newTestRequests(t *testing.T) *RequestService {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRequestService(st, logger)
}

func testInput() model.RuleRequestInput {
	return model.RuleRequestInput{
		SourceIP:      "10.0.0.1",
		DestinationIP: "10.0.0.2",
		Port:          "443",
		Protocol:      "TCP",
		Description:   "test",
	}
}

func TestCreateSetsOwnershipAndAudits(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.CreatedBy != "alice" {
		t.Errorf("createdBy: got %q, want alice", req.CreatedBy)
	}
	if req.RequesterName != "Alice Example" {
		t.Errorf("requester_name: got %q, want display name", req.RequesterName)
	}
	if req.Status != model.StatusPending {
		t.Errorf("status: got %q, want pending", req.Status)
	}

	entries, err := svc.Audit(ctx, admin)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Username != "alice" || e.Action != model.AuditCreateRequest || e.ResourceID != req.ID {
		t.Errorf("audit entry: %+v", e)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestRequests(t)
	in := testInput()
	in.Protocol = "banana"
	if _, err := svc.Create(context.Background(), in, alice); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestCreateDuplicateTuple(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Create(ctx, testInput(), bob)
	var dup *store.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want DuplicateError", err)
	}
	if dup.ExistingID != first.ID {
		t.Errorf("duplicate id: got %q, want %q", dup.ExistingID, first.ID)
	}
}

func TestListFiltersByOwner(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testInput(), alice); err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, err := svc.List(ctx, admin)
	if err != nil {
		t.Fatalf("List as admin: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("admin list: got %d, want 1", len(all))
	}

	mine, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List as alice: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("alice list: got %d, want 1", len(mine))
	}

	// A user with no requests sees an empty list even though others exist.
	none, err := svc.List(ctx, bob)
	if err != nil {
		t.Fatalf("List as bob: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("bob list: got %d, want 0", len(none))
	}
}

func TestGetOwnership(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, req.ID, alice); err != nil {
		t.Errorf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, req.ID, admin); err != nil {
		t.Errorf("admin get: %v", err)
	}
	if _, err := svc.Get(ctx, req.ID, bob); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger get: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, "no-such-id", admin); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing get: got %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusAdminOnly(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Non-admin update fails and leaves the record unchanged, even for the
	// record's owner.
	if _, err := svc.UpdateStatus(ctx, req.ID, model.StatusApproved, "sneaky", alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	unchanged, err := svc.Get(ctx, req.ID, admin)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if unchanged.Status != model.StatusPending || unchanged.ReviewerNotes != "" {
		t.Errorf("record mutated by forbidden update: %+v", unchanged)
	}

	updated, err := svc.UpdateStatus(ctx, req.ID, model.StatusApproved, "looks fine", admin)
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Status != model.StatusApproved || updated.ReviewerNotes != "looks fine" {
		t.Errorf("updated record: %+v", updated)
	}

	entries, err := svc.Audit(ctx, admin)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != model.AuditUpdateRequest || last.ResourceID != req.ID || last.Username != "root" {
		t.Errorf("audit entry for update: %+v", last)
	}
}

func TestUpdateStatusUnknownValue(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, req.ID, model.Status("shipped"), "", admin); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("got %v, want ErrInvalidStatus", err)
	}
}

func TestUpdateStatusLifecycleGraph(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, testInput(), alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, req.ID, model.StatusDone, "", admin); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("pending -> done: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.UpdateStatus(ctx, req.ID, model.StatusApproved, "", admin); err != nil {
		t.Fatalf("pending -> approved: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, req.ID, model.StatusDone, "", admin); err != nil {
		t.Fatalf("approved -> done: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, req.ID, model.StatusPending, "", admin); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("done -> pending: got %v, want ErrInvalidTransition", err)
	}
}

func TestInstall(t *testing.T) {
	svc := newTestRequests(t)
	ctx := context.Background()

	if err := svc.Install(ctx, alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin install: got %v, want ErrForbidden", err)
	}
	if err := svc.Install(ctx, admin); err != nil {
		t.Fatalf("Install: %v", err)
	}

	entries, err := svc.Audit(ctx, admin)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != model.AuditInstallRules {
		t.Errorf("install audit: %+v", entries)
	}
}
