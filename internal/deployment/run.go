package deployment

import (
	"context"
	"errors"
	"fmt"

	"voice-agent-platform/internal/sipgateway"
	"voice-agent-platform/internal/telephony"
)

// run is the state of one Deploy invocation.
type run struct {
	o         *Orchestrator
	agentID   string
	accountID string
	state     State
	saga      saga
	binding   Binding
}

func (r *run) deployWithoutNumber(ctx context.Context, req DeployRequest) (DeployResult, error) {
	if err := ctx.Err(); err != nil {
		return DeployResult{}, r.fail(ctx, StageMintToken, err)
	}

	token, err := r.o.gateway.MintWorkerToken(workerIdentity(r.agentID), sipgateway.WorkerTokenTTL, r.tokenMetadata(req.Config))
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageMintToken, err)
	}

	if err := r.persist(ctx, ""); err != nil {
		return DeployResult{}, r.fail(ctx, StagePersist, err)
	}
	r.advance(ctx, StateDeployed, StagePersist, map[string]string{"telephony": "false"})
	return DeployResult{WorkerToken: token}, nil
}

func (r *run) deployWithNumber(ctx context.Context, req DeployRequest) (DeployResult, error) {
	o := r.o
	r.binding.PhoneNumber = req.PhoneNumber
	r.binding.OriginationURI = o.opts.SIPURI

	// a. number ownership
	var number telephony.NumberRecord
	err := r.call(ctx, func(cctx context.Context) error {
		var err error
		number, err = o.carrier.FindNumber(cctx, req.PhoneNumber)
		return err
	})
	if err != nil {
		if telephony.IsNotFound(err) {
			err = fmt.Errorf("%w: %w", ErrNumberNotOwned, err)
		}
		return DeployResult{}, r.fail(ctx, StageFindNumber, err)
	}
	r.binding.PhoneNumberSID = number.SID
	r.advance(ctx, StateNumberValidated, StageFindNumber, map[string]string{"phone_number_sid": number.SID})

	// b. carrier trunk
	name := telephony.TrunkFriendlyName(r.agentID, o.opts.Now())
	var trunk telephony.TrunkHandle
	err = r.call(ctx, func(cctx context.Context) error {
		var err error
		trunk, err = o.carrier.CreateTrunk(cctx, name)
		return err
	})
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageCreateCarrierTrunk, err)
	}
	r.binding.CarrierTrunkSID = trunk.SID
	r.saga.push(StageDeleteCarrierTrunk, func(cctx context.Context) error {
		return o.carrier.DeleteTrunk(cctx, trunk)
	})
	r.advance(ctx, StateCarrierTrunkCreated, StageCreateCarrierTrunk, map[string]string{"carrier_trunk_sid": trunk.SID})

	// c. origination; dies with the trunk, no own compensation
	err = r.call(ctx, func(cctx context.Context) error {
		return o.carrier.SetOriginationTarget(cctx, trunk, telephony.DefaultOriginationTarget(o.opts.SIPURI))
	})
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageSetOrigination, err)
	}
	r.advance(ctx, StateOriginationConfigured, StageSetOrigination, nil)

	// d. number attachment; dies with the trunk
	err = r.call(ctx, func(cctx context.Context) error {
		return o.carrier.AttachNumber(cctx, trunk, number)
	})
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageAttachNumber, err)
	}
	r.advance(ctx, StateNumberAttached, StageAttachNumber, nil)

	// e. gateway inbound trunk
	var gwTrunk sipgateway.Trunk
	err = r.call(ctx, func(cctx context.Context) error {
		var err error
		gwTrunk, err = o.gateway.CreateInboundTrunk(cctx, sipgateway.InboundTrunkRequest{
			Name:    name,
			Numbers: []string{req.PhoneNumber},
		})
		return err
	})
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageCreateGatewayTrunk, err)
	}
	r.binding.GatewayTrunkID = gwTrunk.ID
	r.saga.push(StageDeleteGatewayTrunk, func(cctx context.Context) error {
		return o.gateway.DeleteTrunk(cctx, gwTrunk.ID)
	})
	r.advance(ctx, StateGatewayTrunkCreated, StageCreateGatewayTrunk, map[string]string{"gateway_trunk_id": gwTrunk.ID})

	// f. dispatch rule
	var rule sipgateway.DispatchRule
	err = r.call(ctx, func(cctx context.Context) error {
		var err error
		rule, err = o.gateway.CreateDispatchRule(cctx, sipgateway.DispatchRuleRequest{
			Name:       name,
			RoomPrefix: DispatchRoomPrefix,
			TrunkIDs:   []string{gwTrunk.ID},
			Metadata:   map[string]any{"agentId": r.agentID},
		})
		return err
	})
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageCreateDispatchRule, err)
	}
	r.binding.DispatchRuleID = rule.ID
	if rule.ID != "" {
		r.saga.push(StageDeleteDispatchRule, func(cctx context.Context) error {
			return o.gateway.DeleteDispatchRule(cctx, rule.ID)
		})
	}
	r.advance(ctx, StateDispatchRuleCreated, StageCreateDispatchRule, map[string]string{"dispatch_rule_id": rule.ID})

	// g. worker token
	if err := ctx.Err(); err != nil {
		return DeployResult{}, r.fail(ctx, StageMintToken, err)
	}
	token, err := o.gateway.MintWorkerToken(workerIdentity(r.agentID), sipgateway.WorkerTokenTTL, r.tokenMetadata(req.Config))
	if err != nil {
		return DeployResult{}, r.fail(ctx, StageMintToken, err)
	}

	// h. record
	if err := r.persist(ctx, gwTrunk.ID); err != nil {
		o.emit(ctx, Event{
			Name:      EventPersistAfterProvision,
			AgentID:   r.agentID,
			AccountID: r.accountID,
			From:      r.state,
			To:        StateFailed,
			Stage:     StagePersist,
			Outcome:   OutcomeFailed,
			Err:       err.Error(),
			Alert:     true,
			Attrs:     r.bindingAttrs(),
		})
		return DeployResult{}, r.fail(ctx, StagePersist, err)
	}
	r.advance(ctx, StateDeployed, StagePersist, map[string]string{"gateway_trunk_id": gwTrunk.ID})

	return DeployResult{WorkerToken: token, GatewayTrunkID: gwTrunk.ID}, nil
}

// call runs one external step under the per-call timeout. A canceled parent
// context short-circuits before the call is issued.
func (r *run) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cctx, cancel := r.o.callContext(ctx)
	defer cancel()
	err := fn(cctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		// The caller gave up while the call was failing; report the cancellation.
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (r *run) persist(ctx context.Context, gatewayTrunkID string) error {
	cctx, cancel := r.o.callContext(ctx)
	defer cancel()
	return r.o.store.SetDeployed(cctx, r.agentID, gatewayTrunkID, r.o.opts.Now())
}

func (r *run) advance(ctx context.Context, to State, stage Stage, attrs map[string]string) {
	r.o.emit(ctx, Event{
		Name:      EventTransition,
		AgentID:   r.agentID,
		AccountID: r.accountID,
		From:      r.state,
		To:        to,
		Stage:     stage,
		Outcome:   OutcomeOK,
		Attrs:     attrs,
	})
	r.state = to
}

// fail records the failed transition, unwinds completed steps and returns
// the original error tagged with its stage.
func (r *run) fail(ctx context.Context, stage Stage, err error) error {
	r.o.emit(ctx, Event{
		Name:      EventTransition,
		AgentID:   r.agentID,
		AccountID: r.accountID,
		From:      r.state,
		To:        StateFailed,
		Stage:     stage,
		Outcome:   OutcomeFailed,
		Err:       err.Error(),
	})
	r.state = StateFailed
	r.compensate(ctx)
	return &StageError{Stage: stage, Err: err}
}

// compensate unwinds on a context detached from the caller's cancellation,
// bounded by CompensationTimeout.
func (r *run) compensate(ctx context.Context) {
	if r.saga.len() == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.opts.CompensationTimeout)
	defer cancel()

	r.saga.unwind(cctx, func(stage Stage, err error) {
		ev := Event{
			Name:      EventCompensation,
			AgentID:   r.agentID,
			AccountID: r.accountID,
			Stage:     stage,
			Outcome:   OutcomeCompensated,
			Attrs:     r.bindingAttrs(),
		}
		if err != nil {
			ev.Outcome = OutcomeCompensationFailed
			ev.Err = err.Error()
		}
		r.o.emit(ctx, ev)
	})
}

func (r *run) bindingAttrs() map[string]string {
	attrs := map[string]string{}
	add := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	add("phone_number", r.binding.PhoneNumber)
	add("carrier_trunk_sid", r.binding.CarrierTrunkSID)
	add("gateway_trunk_id", r.binding.GatewayTrunkID)
	add("dispatch_rule_id", r.binding.DispatchRuleID)
	return attrs
}

func (r *run) tokenMetadata(cfg AgentConfig) map[string]any {
	md := map[string]any{
		"type":                 "worker",
		"agentId":              r.agentID,
		"businessName":         cfg.BusinessName,
		"customInstructions":   cfg.CustomInstructions,
		"initiateConversation": cfg.InitiateConversation,
		"initialMessage":       cfg.InitialMessage,
	}
	if cfg.DocumentNamespace != "" {
		md["documentNamespace"] = cfg.DocumentNamespace
	}
	if r.binding.CarrierTrunkSID != "" {
		md["carrierTrunkSid"] = r.binding.CarrierTrunkSID
	}
	if r.binding.GatewayTrunkID != "" {
		md["gatewayTrunkId"] = r.binding.GatewayTrunkID
	}
	return md
}

func workerIdentity(agentID string) string {
	return "worker-" + agentID
}
