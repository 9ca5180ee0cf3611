package deployment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"voice-agent-platform/internal/sipgateway"
	"voice-agent-platform/internal/telephony"
	"voice-agent-platform/pkg/tracing"
)

const (
	defaultCallTimeout         = 15 * time.Second
	defaultCompensationTimeout = 30 * time.Second

	// DispatchRoomPrefix names the per-call rooms created by the dispatch rule.
	DispatchRoomPrefix = "call"
)

type Options struct {
	// SIPURI is the gateway's SIP ingestion endpoint used as carrier origination target.
	SIPURI string

	// CallTimeout bounds each external call. Zero means the default.
	CallTimeout time.Duration
	// CompensationTimeout bounds the whole compensation path.
	CompensationTimeout time.Duration

	Now func() time.Time
}

// Orchestrator sequences carrier and gateway calls to stand up or tear down
// one agent's phone route, compensating completed steps on failure.
type Orchestrator struct {
	store   Store
	carrier telephony.Carrier
	gateway sipgateway.Gateway
	locker  Locker
	sink    EventSink
	tracer  trace.Tracer
	opts    Options
}

func NewOrchestrator(store Store, carrier telephony.Carrier, gateway sipgateway.Gateway, locker Locker, sink EventSink, opts Options) (*Orchestrator, error) {
	if store == nil || carrier == nil || gateway == nil {
		return nil, errors.New("deployment: store, carrier and gateway are required")
	}
	if opts.SIPURI == "" {
		return nil, errors.New("deployment: gateway sip uri is required")
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if sink == nil {
		sink = LogSink{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.CompensationTimeout <= 0 {
		opts.CompensationTimeout = defaultCompensationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:   store,
		carrier: carrier,
		gateway: gateway,
		locker:  locker,
		sink:    sink,
		tracer:  tracing.Tracer("voice-agent-platform/internal/deployment"),
		opts:    opts,
	}, nil
}

// Deploy provisions the agent's phone route (when a number is supplied),
// mints a worker token and records the agent as deployed.
func (o *Orchestrator) Deploy(ctx context.Context, req DeployRequest) (DeployResult, error) {
	ctx, span := o.tracer.Start(ctx, "deployment.Deploy", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
		attribute.Bool("deploy.telephony", strings.TrimSpace(req.PhoneNumber) != ""),
	))
	defer span.End()

	res, err := o.deploy(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deploy failed")
		if st := StageOf(err); st != "" {
			span.SetAttributes(attribute.String("deploy.failed_stage", string(st)))
		}
	}
	return res, err
}

func (o *Orchestrator) deploy(ctx context.Context, req DeployRequest) (DeployResult, error) {
	req, err := normalizeDeployRequest(req)
	if err != nil {
		return DeployResult{}, err
	}

	release, err := o.locker.Acquire(ctx, req.AgentID)
	if err != nil {
		return DeployResult{}, err
	}
	defer release()

	rec, err := o.load(ctx, req.AgentID)
	if err != nil {
		return DeployResult{}, err
	}
	if req.AccountID != "" && rec.AccountID != req.AccountID {
		return DeployResult{}, ErrNotFound
	}
	if rec.Deployed {
		return DeployResult{}, ErrAlreadyDeployed
	}

	r := &run{o: o, agentID: req.AgentID, accountID: rec.AccountID, state: StateIdle}
	if req.PhoneNumber == "" {
		return r.deployWithoutNumber(ctx, req)
	}
	return r.deployWithNumber(ctx, req)
}

func normalizeDeployRequest(req DeployRequest) (DeployRequest, error) {
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.Config.BusinessName = strings.TrimSpace(req.Config.BusinessName)
	if req.AgentID == "" {
		return req, fmt.Errorf("%w: agent id is required", ErrInvalidArgument)
	}
	if req.Config.BusinessName == "" {
		return req, fmt.Errorf("%w: business name is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		req.PhoneNumber = ""
		return req, nil
	}
	e164, err := telephony.NormalizeE164(req.PhoneNumber)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	req.PhoneNumber = e164
	return req, nil
}

// Cleanup tears down the agent's gateway trunk (best-effort) and clears the
// deployment record. Calling it on an undeployed agent is a no-op.
func (o *Orchestrator) Cleanup(ctx context.Context, req CleanupRequest) (CleanupResult, error) {
	ctx, span := o.tracer.Start(ctx, "deployment.Cleanup", trace.WithAttributes(
		attribute.String("agent.id", req.AgentID),
	))
	defer span.End()

	res, err := o.cleanup(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cleanup failed")
	}
	return res, err
}

func (o *Orchestrator) cleanup(ctx context.Context, req CleanupRequest) (CleanupResult, error) {
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		return CleanupResult{}, fmt.Errorf("%w: agent id is required", ErrInvalidArgument)
	}

	release, err := o.locker.Acquire(ctx, agentID)
	if err != nil {
		return CleanupResult{}, err
	}
	defer release()

	rec, err := o.load(ctx, agentID)
	if err != nil {
		return CleanupResult{}, err
	}
	if req.AccountID != "" && rec.AccountID != req.AccountID {
		return CleanupResult{}, ErrNotFound
	}

	ev := Event{Name: EventCleanup, AgentID: agentID, AccountID: rec.AccountID}
	if !rec.Deployed {
		ev.Outcome = OutcomeSkipped
		ev.From, ev.To = StateIdle, StateIdle
		o.emit(ctx, ev)
		return CleanupResult{Status: StatusCleanedUp}, nil
	}

	if rec.SIPTrunkID != "" {
		step := ev
		step.Stage = StageDeleteGatewayTrunk
		step.Attrs = map[string]string{"gateway_trunk_id": rec.SIPTrunkID}

		cctx, cancel := o.callContext(ctx)
		err := o.gateway.DeleteTrunk(cctx, rec.SIPTrunkID)
		cancel()
		if err != nil {
			step.Outcome = OutcomeFailed
			step.Err = err.Error()
		} else {
			step.Outcome = OutcomeOK
		}
		o.emit(ctx, step)

		// Neither the dispatch rule id nor the carrier trunk id is persisted,
		// so both are left for an operator to remove.
		o.emit(ctx, Event{
			Name:      EventDispatchRuleUnmanaged,
			AgentID:   agentID,
			AccountID: rec.AccountID,
			Stage:     StageDeleteDispatchRule,
			Outcome:   OutcomeWarning,
			Attrs: map[string]string{
				"gateway_trunk_id": rec.SIPTrunkID,
				"room_prefix":      DispatchRoomPrefix,
			},
		})
		o.emit(ctx, Event{
			Name:      EventCarrierTrunkUnmanaged,
			AgentID:   agentID,
			AccountID: rec.AccountID,
			Stage:     StageDeleteCarrierTrunk,
			Outcome:   OutcomeWarning,
			Attrs: map[string]string{
				"gateway_trunk_id": rec.SIPTrunkID,
				"phone_number":     rec.PhoneNumber,
			},
		})
	}

	sctx, cancel := o.callContext(ctx)
	err = o.store.ClearDeployed(sctx, agentID)
	cancel()
	if err != nil {
		failed := ev
		failed.Stage = StageClearRecord
		failed.Outcome = OutcomeFailed
		failed.Err = err.Error()
		o.emit(ctx, failed)
		return CleanupResult{}, &StageError{Stage: StageClearRecord, Err: err}
	}

	done := ev
	done.From, done.To = StateDeployed, StateIdle
	done.Stage = StageClearRecord
	done.Outcome = OutcomeOK
	o.emit(ctx, done)
	return CleanupResult{Status: StatusCleanedUp}, nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

func (o *Orchestrator) load(ctx context.Context, agentID string) (Deployment, error) {
	cctx, cancel := o.callContext(ctx)
	defer cancel()
	return o.store.Get(cctx, agentID)
}

// emit delivers e on a context detached from cancellation so a canceled
// flow still reports its compensations.
func (o *Orchestrator) emit(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = o.opts.Now().UTC()
	}
	emitSafe(context.WithoutCancel(ctx), o.sink, e)
}
