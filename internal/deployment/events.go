package deployment

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/pkg/logger"
)

// State is a position in the deployment state machine.
type State string

const (
	StateIdle                  State = "idle"
	StateNumberValidated       State = "number_validated"
	StateCarrierTrunkCreated   State = "carrier_trunk_created"
	StateOriginationConfigured State = "origination_configured"
	StateNumberAttached        State = "number_attached"
	StateGatewayTrunkCreated   State = "gateway_trunk_created"
	StateDispatchRuleCreated   State = "dispatch_rule_created"
	StateDeployed              State = "deployed"
	StateFailed                State = "failed"
)

type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeFailed             Outcome = "failed"
	OutcomeCompensated        Outcome = "compensated"
	OutcomeCompensationFailed Outcome = "compensation_failed"
	OutcomeSkipped            Outcome = "skipped"
	OutcomeWarning            Outcome = "warning"
)

// Event names.
const (
	EventTransition            = "deploy.transition"
	EventCompensation          = "deploy.compensation"
	EventPersistAfterProvision = "deploy.persist_after_provision_failed"
	EventCleanup               = "cleanup.step"
	EventCarrierTrunkUnmanaged = "carrier_trunk_unmanaged"
	EventDispatchRuleUnmanaged = "dispatch_rule_unmanaged"
)

// Event is one structured record of a state transition, compensation or
// cleanup step. Alert marks events that need an operator.
type Event struct {
	Name      string            `json:"name"`
	AgentID   string            `json:"agent_id"`
	AccountID string            `json:"account_id,omitempty"`
	From      State             `json:"from,omitempty"`
	To        State             `json:"to,omitempty"`
	Stage     Stage             `json:"stage,omitempty"`
	Outcome   Outcome           `json:"outcome"`
	Err       string            `json:"error,omitempty"`
	Alert     bool              `json:"alert,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	At        time.Time         `json:"at"`
}

// EventSink consumes orchestrator events. Emit must not block for long and
// has no way to influence the flow that produced the event.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// LogSink writes events as slog records. A nil Logger uses the request logger from ctx.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ctx context.Context, e Event) {
	l := s.Logger
	if l == nil {
		l = logger.From(ctx)
	}

	attrs := []any{
		"agent_id", e.AgentID,
		"outcome", string(e.Outcome),
	}
	if e.AccountID != "" {
		attrs = append(attrs, "account_id", e.AccountID)
	}
	if e.From != "" || e.To != "" {
		attrs = append(attrs, "from", string(e.From), "to", string(e.To))
	}
	if e.Stage != "" {
		attrs = append(attrs, "stage", string(e.Stage))
	}
	if e.Err != "" {
		attrs = append(attrs, "error", e.Err)
	}
	if e.Alert {
		attrs = append(attrs, "alert", true)
	}
	for k, v := range e.Attrs {
		attrs = append(attrs, k, v)
	}

	level := slog.LevelInfo
	switch e.Outcome {
	case OutcomeFailed, OutcomeCompensationFailed:
		level = slog.LevelError
	case OutcomeWarning:
		level = slog.LevelWarn
	}
	if e.Alert {
		level = slog.LevelError
	}
	l.Log(ctx, level, e.Name, attrs...)
}

// AuditSink appends events to the internal audit log.
// Events without an account id are dropped since audit is account-scoped.
type AuditSink struct {
	Audit *audit.Service
}

func (s AuditSink) Emit(ctx context.Context, e Event) {
	if s.Audit == nil || e.AccountID == "" {
		return
	}
	md, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.Audit.LogDeployment(ctx, e.AccountID, e.AgentID, e.Name, string(md)); err != nil {
		logger.From(ctx).Warn("audit append failed", "agent_id", e.AgentID, "error", err.Error())
	}
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// MemorySink records events in memory. Useful in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Emit(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Named returns recorded events with the given name.
func (m *MemorySink) Named(name string) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// emitSafe shields the caller from a panicking sink.
func emitSafe(ctx context.Context, sink EventSink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx).Error("event sink panicked", "event", e.Name, "panic", r)
		}
	}()
	sink.Emit(ctx, e)
}
