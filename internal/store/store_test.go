package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fwdesk/fwdesk/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
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

func TestCreateRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req, err := s.CreateRequest(ctx, testInput(), "alice", "Alice Example")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.ID == "" {
		t.Error("expected assigned id")
	}
	if req.Status != model.StatusPending {
		t.Errorf("status: got %q, want pending", req.Status)
	}
	if req.CreatedBy != "alice" {
		t.Errorf("createdBy: got %q, want alice", req.CreatedBy)
	}
	if req.ReviewerNotes != "" {
		t.Errorf("reviewer notes: got %q, want empty", req.ReviewerNotes)
	}

	got, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.SourceIP != "10.0.0.1" || got.Port != "443" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCreateRequestDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRequest(ctx, testInput(), "alice", "")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	_, err = s.CreateRequest(ctx, testInput(), "bob", "")
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.ExistingID != first.ID {
		t.Errorf("conflicting id: got %q, want %q", dup.ExistingID, first.ID)
	}
}

// The duplicate check must still apply after the existing record leaves the
// pending state.
func TestCreateRequestDuplicateNonPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRequest(ctx, testInput(), "alice", "")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := s.UpdateRequestStatus(ctx, first.ID, model.StatusRejected, "no"); err != nil {
		t.Fatalf("UpdateRequestStatus: %v", err)
	}

	_, err = s.CreateRequest(ctx, testInput(), "bob", "")
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError against rejected record, got %v", err)
	}
}

func TestCreateRequestConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateRequest(ctx, testInput(), "alice", "")
		}(i)
	}
	wg.Wait()

	var created, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		default:
			var dup *DuplicateError
			if !errors.As(err, &dup) {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicted++
		}
	}
	if created != 1 {
		t.Errorf("created: got %d, want exactly 1", created)
	}
	if conflicted != workers-1 {
		t.Errorf("conflicted: got %d, want %d", conflicted, workers-1)
	}
}

func TestGetRequestNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRequest(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRequestsByCreator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := testInput()
	if _, err := s.CreateRequest(ctx, in, "alice", ""); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	in.Port = "8080"
	if _, err := s.CreateRequest(ctx, in, "carol", ""); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	all, err := s.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all: got %d requests, want 2", len(all))
	}

	mine, err := s.ListRequestsByCreator(ctx, "alice")
	if err != nil {
		t.Fatalf("ListRequestsByCreator: %v", err)
	}
	if len(mine) != 1 || mine[0].CreatedBy != "alice" {
		t.Fatalf("alice's requests: got %+v", mine)
	}

	none, err := s.ListRequestsByCreator(ctx, "bob")
	if err != nil {
		t.Fatalf("ListRequestsByCreator: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("bob's requests: got %d, want 0", len(none))
	}
}

func TestUpdateRequestStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req, err := s.CreateRequest(ctx, testInput(), "alice", "")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	updated, err := s.UpdateRequestStatus(ctx, req.ID, model.StatusApproved, "looks fine")
	if err != nil {
		t.Fatalf("UpdateRequestStatus: %v", err)
	}
	if updated.Status != model.StatusApproved {
		t.Errorf("status: got %q, want approved", updated.Status)
	}
	if updated.ReviewerNotes != "looks fine" {
		t.Errorf("notes: got %q, want %q", updated.ReviewerNotes, "looks fine")
	}

	// Blank notes keep the prior notes.
	updated, err = s.UpdateRequestStatus(ctx, req.ID, model.StatusDone, "")
	if err != nil {
		t.Fatalf("UpdateRequestStatus: %v", err)
	}
	if updated.ReviewerNotes != "looks fine" {
		t.Errorf("notes after blank update: got %q, want preserved", updated.ReviewerNotes)
	}
}

func TestUpdateRequestStatusInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req, err := s.CreateRequest(ctx, testInput(), "alice", "")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if _, err := s.UpdateRequestStatus(ctx, req.ID, model.StatusDone, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> done: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := s.UpdateRequestStatus(ctx, req.ID, model.StatusRejected, "no"); err != nil {
		t.Fatalf("pending -> rejected: %v", err)
	}
	if _, err := s.UpdateRequestStatus(ctx, req.ID, model.StatusApproved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("rejected -> approved: expected ErrInvalidTransition, got %v", err)
	}

	// Record unchanged after the failed transition.
	got, err := s.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != model.StatusRejected || got.ReviewerNotes != "no" {
		t.Errorf("record changed by failed transition: %+v", got)
	}
}

func TestUpdateRequestStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpdateRequestStatus(context.Background(), "missing", model.StatusApproved, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditAppendAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries, skipped, err := s.ReadAudit(ctx)
	if err != nil {
		t.Fatalf("ReadAudit empty: %v", err)
	}
	if len(entries) != 0 || skipped != 0 {
		t.Fatalf("empty log: got %d entries, %d skipped", len(entries), skipped)
	}

	req, err := s.CreateRequest(ctx, testInput(), "alice", "")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	for _, action := range []string{model.AuditCreateRequest, model.AuditUpdateRequest} {
		entry := model.AuditEntry{Username: "alice", Action: action, ResourceID: req.ID}
		entry.Timestamp = req.CreatedAt
		if err := s.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	entries, skipped, err = s.ReadAudit(ctx)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped: got %d, want 0", skipped)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Action != model.AuditCreateRequest || entries[1].Action != model.AuditUpdateRequest {
		t.Errorf("entries out of write order: %+v", entries)
	}
}
