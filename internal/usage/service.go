package usage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRecord = errors.New("usage: invalid record")
	ErrAlreadyBilled = errors.New("usage: record already billed")
)

// Repository persists usage records.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	ListUnbilled(ctx context.Context, from, to time.Time) ([]Record, error)
}

type RecordRequest struct {
	AccountID       string
	AgentID         string
	DurationMinutes decimal.Decimal
	// Timestamp defaults to now.
	Timestamp time.Time
}

// Service records call usage at call end.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Record(ctx context.Context, req RecordRequest) (Record, error) {
	if s.repo == nil {
		return Record{}, errors.New("usage: repository not configured")
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return Record{}, ErrInvalidRecord
	}
	if !req.DurationMinutes.IsPositive() {
		return Record{}, ErrInvalidRecord
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = s.clock()
	}
	r := Record{
		ID:              uuid.NewString(),
		AccountID:       req.AccountID,
		AgentID:         req.AgentID,
		DurationMinutes: req.DurationMinutes,
		Timestamp:       ts.UTC(),
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return Record{}, err
	}
	return r, nil
}
