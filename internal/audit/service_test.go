package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresAccountAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{AccountID: "acct"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), "acct", "u", "super_admin", "1.2.3.4", "billing run", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeAdminAction {
		t.Fatalf("expected admin_action")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at defaulted")
	}
}

func TestService_LogDeploymentCarriesAgent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogDeployment(context.Background(), "acct", "a1", "deployed", `{"stage":"persist"}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].AgentID != "a1" || evs[0].Type != EventTypeDeployment {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestMemoryRepo_ForAccountIsTenantScoped(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.LogDeployment(ctx, "acct-a", "a1", "deployed", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogAdminAction(ctx, "acct-a", "u", "super_admin", "", "billing run", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogDeployment(ctx, "acct-b", "b1", "deployed", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if evs := repo.ForAccount("acct-a"); len(evs) != 2 {
		t.Fatalf("expected 2 events for acct-a, got %+v", evs)
	}
	evs := repo.ForAccount("acct-a", EventTypeDeployment)
	if len(evs) != 1 || evs[0].AgentID != "a1" {
		t.Fatalf("expected only a1 deployment, got %+v", evs)
	}
	if evs := repo.ForAccount("acct-b", EventTypeAdminAction); len(evs) != 0 {
		t.Fatalf("expected no admin events for acct-b, got %+v", evs)
	}
	if evs := repo.ForAccount("acct-c"); len(evs) != 0 {
		t.Fatalf("expected nothing for unknown account, got %+v", evs)
	}
}
