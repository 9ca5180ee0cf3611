package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to account users.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action such as a manual billing run.
func (s *Service) LogAdminAction(ctx context.Context, accountID, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogDeployment records one deployment state transition for an agent.
func (s *Service) LogDeployment(ctx context.Context, accountID, agentID, message, metadata string) error {
	return s.Append(ctx, Event{
		AccountID: accountID,
		Type:      EventTypeDeployment,
		AgentID:   agentID,
		Message:   message,
		Metadata:  metadata,
	})
}

// LogBilling records the billing outcome for one account.
func (s *Service) LogBilling(ctx context.Context, accountID, billingRecordID, message, metadata string) error {
	return s.Append(ctx, Event{
		AccountID:       accountID,
		Type:            EventTypeBilling,
		BillingRecordID: billingRecordID,
		Message:         message,
		Metadata:        metadata,
	})
}
