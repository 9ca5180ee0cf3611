package deployment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"voice-agent-platform/internal/sipgateway"
	"voice-agent-platform/internal/telephony"
)

// recorder is a call log shared by the carrier and gateway doubles so tests
// can assert the exact cross-system sequence.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeCarrier struct {
	rec   *recorder
	owned map[string]string
	fail  map[string]error
	hook  func(ctx context.Context, method string)
}

func (f *fakeCarrier) enter(ctx context.Context, method string) error {
	if f.hook != nil {
		f.hook(ctx, method)
	}
	if err := ctx.Err(); err != nil {
		return &telephony.CarrierError{Kind: telephony.KindCanceled, Op: method, Message: err.Error(), Err: err}
	}
	return f.fail[method]
}

func (f *fakeCarrier) FindNumber(ctx context.Context, e164 string) (telephony.NumberRecord, error) {
	f.rec.record("carrier.FindNumber %s", e164)
	if err := f.enter(ctx, "FindNumber"); err != nil {
		return telephony.NumberRecord{}, err
	}
	sid, ok := f.owned[e164]
	if !ok {
		return telephony.NumberRecord{}, &telephony.CarrierError{Kind: telephony.KindNotFound, Op: "find_number", Message: "not owned"}
	}
	return telephony.NumberRecord{SID: sid, E164: e164}, nil
}

func (f *fakeCarrier) CreateTrunk(ctx context.Context, friendlyName string) (telephony.TrunkHandle, error) {
	f.rec.record("carrier.CreateTrunk")
	if err := f.enter(ctx, "CreateTrunk"); err != nil {
		return telephony.TrunkHandle{}, err
	}
	return telephony.TrunkHandle{SID: "TK1", FriendlyName: friendlyName}, nil
}

func (f *fakeCarrier) SetOriginationTarget(ctx context.Context, trunk telephony.TrunkHandle, target telephony.OriginationTarget) error {
	f.rec.record("carrier.SetOriginationTarget %s %s", trunk.SID, target.SIPURI)
	return f.enter(ctx, "SetOriginationTarget")
}

func (f *fakeCarrier) AttachNumber(ctx context.Context, trunk telephony.TrunkHandle, number telephony.NumberRecord) error {
	f.rec.record("carrier.AttachNumber %s %s", trunk.SID, number.SID)
	return f.enter(ctx, "AttachNumber")
}

func (f *fakeCarrier) DeleteTrunk(ctx context.Context, trunk telephony.TrunkHandle) error {
	f.rec.record("carrier.DeleteTrunk %s", trunk.SID)
	return f.enter(ctx, "DeleteTrunk")
}

type fakeGateway struct {
	rec    *recorder
	fail   map[string]error
	hook   func(ctx context.Context, method string)
	signer *sipgateway.TokenSigner
}

func (f *fakeGateway) enter(ctx context.Context, method string) error {
	if f.hook != nil {
		f.hook(ctx, method)
	}
	if err := ctx.Err(); err != nil {
		return &sipgateway.GatewayError{Kind: sipgateway.KindCanceled, Op: method, Message: err.Error(), Err: err}
	}
	return f.fail[method]
}

func (f *fakeGateway) CreateInboundTrunk(ctx context.Context, req sipgateway.InboundTrunkRequest) (sipgateway.Trunk, error) {
	f.rec.record("gateway.CreateInboundTrunk %s", strings.Join(req.Numbers, ","))
	if err := f.enter(ctx, "CreateInboundTrunk"); err != nil {
		return sipgateway.Trunk{}, err
	}
	return sipgateway.Trunk{ID: "ST1", Name: req.Name}, nil
}

func (f *fakeGateway) CreateDispatchRule(ctx context.Context, req sipgateway.DispatchRuleRequest) (sipgateway.DispatchRule, error) {
	f.rec.record("gateway.CreateDispatchRule %s %s agent=%v", req.RoomPrefix, strings.Join(req.TrunkIDs, ","), req.Metadata["agentId"])
	if err := f.enter(ctx, "CreateDispatchRule"); err != nil {
		return sipgateway.DispatchRule{}, err
	}
	return sipgateway.DispatchRule{ID: "SDR1"}, nil
}

func (f *fakeGateway) DeleteDispatchRule(ctx context.Context, ruleID string) error {
	f.rec.record("gateway.DeleteDispatchRule %s", ruleID)
	return f.enter(ctx, "DeleteDispatchRule")
}

func (f *fakeGateway) DeleteTrunk(ctx context.Context, trunkID string) error {
	f.rec.record("gateway.DeleteTrunk %s", trunkID)
	return f.enter(ctx, "DeleteTrunk")
}

func (f *fakeGateway) MintWorkerToken(identity string, ttl time.Duration, metadata map[string]any) (string, error) {
	f.rec.record("gateway.MintWorkerToken %s", identity)
	if err := f.fail["MintWorkerToken"]; err != nil {
		return "", err
	}
	return f.signer.MintWorkerToken(identity, ttl, metadata)
}

// failingStore wraps MemoryRepo with injectable write failures.
type failingStore struct {
	*MemoryRepo
	setErr   error
	clearErr error
}

func (s *failingStore) SetDeployed(ctx context.Context, agentID, trunkID string, at time.Time) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryRepo.SetDeployed(ctx, agentID, trunkID, at)
}

func (s *failingStore) ClearDeployed(ctx context.Context, agentID string) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryRepo.ClearDeployed(ctx, agentID)
}
