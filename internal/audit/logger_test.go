package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"member-service/internal/audit/domain"
	telemetrydomain "member-service/internal/telemetry/domain"
)

// mockAuditRepo implements the audit repository for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type chanEmitter chan *telemetrydomain.Event

func (c chanEmitter) Emit(ctx context.Context, e *telemetrydomain.Event) error {
	c <- e
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(ctx context.Context) string { return "192.168.1.1" })

	logger.LogEvent(context.Background(), "user-1", "login_success", "session", "password")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "user-1")
	}
	if entry.Action != "login_success" || entry.Resource != "session" {
		t.Errorf("action/resource = %q/%q", entry.Action, entry.Resource)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.Metadata != "password" {
		t.Errorf("metadata = %q, want %q", entry.Metadata, "password")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil).LogEvent(context.Background(), "", "login_failure", "session", "")
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	// Should not panic
	NewLogger(repo, nil).LogEvent(context.Background(), "user-1", "logout", "session", "")
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	// Should not panic
	NewLogger(nil, nil).LogEvent(context.Background(), "user-1", "logout", "session", "")
}

func TestLogger_LogEvent_Mirror(t *testing.T) {
	events := make(chanEmitter, 1)
	repo := &mockAuditRepo{createErr: errors.New("database error")}
	logger := NewLogger(repo, func(context.Context) string { return "10.0.0.1" }).WithMirror(events)

	logger.LogEvent(context.Background(), "user-1", "passkey_replay_detected", "passkey", `{"stored":5}`)

	select {
	case e := <-events:
		if e.UserID != "user-1" || e.EventType != "passkey_replay_detected" || e.Source != "audit" {
			t.Errorf("mirrored event = %+v", e)
		}
		var meta map[string]string
		if err := json.Unmarshal(e.Metadata, &meta); err != nil {
			t.Fatalf("metadata: %v", err)
		}
		if meta["ip"] != "10.0.0.1" || meta["resource"] != "passkey" || meta["detail"] != `{"stored":5}` {
			t.Errorf("metadata = %v", meta)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not mirrored even though the database write failed")
	}
}
