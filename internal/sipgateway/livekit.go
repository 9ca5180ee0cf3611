package sipgateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"
)

// sipAdmin is the subset of the LiveKit SIP service used here.
type sipAdmin interface {
	CreateSIPInboundTrunk(ctx context.Context, in *livekit.CreateSIPInboundTrunkRequest) (*livekit.SIPInboundTrunkInfo, error)
	CreateSIPDispatchRule(ctx context.Context, in *livekit.CreateSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error)
	DeleteSIPDispatchRule(ctx context.Context, in *livekit.DeleteSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error)
	DeleteSIPTrunk(ctx context.Context, in *livekit.DeleteSIPTrunkRequest) (*livekit.SIPTrunkInfo, error)
}

// LiveKitGateway implements Gateway against a LiveKit server.
type LiveKitGateway struct {
	sip    sipAdmin
	signer *TokenSigner
}

func NewLiveKitGateway(url, apiKey, apiSecret string) (*LiveKitGateway, error) {
	signer, err := NewTokenSigner(apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	return &LiveKitGateway{
		sip:    lksdk.NewSIPClient(url, apiKey, apiSecret),
		signer: signer,
	}, nil
}

func (g *LiveKitGateway) CreateInboundTrunk(ctx context.Context, req InboundTrunkRequest) (Trunk, error) {
	const op = "create_inbound_trunk"
	if req.Name == "" {
		return Trunk{}, &GatewayError{Kind: KindInvalid, Op: op, Message: "name is required"}
	}

	info, err := g.sip.CreateSIPInboundTrunk(ctx, &livekit.CreateSIPInboundTrunkRequest{
		Trunk: &livekit.SIPInboundTrunkInfo{
			Name:             req.Name,
			Numbers:          req.Numbers,
			AllowedAddresses: req.AllowedAddresses,
			AllowedNumbers:   req.AllowedNumbers,
		},
	})
	if err != nil {
		return Trunk{}, classifyTwirp(op, err)
	}
	if info.GetSipTrunkId() == "" {
		return Trunk{}, &GatewayError{Kind: KindUnknown, Op: op, Message: "trunk created without id"}
	}
	return Trunk{ID: info.GetSipTrunkId(), Name: info.GetName()}, nil
}

func (g *LiveKitGateway) CreateDispatchRule(ctx context.Context, req DispatchRuleRequest) (DispatchRule, error) {
	const op = "create_dispatch_rule"
	if len(req.TrunkIDs) == 0 {
		return DispatchRule{}, &GatewayError{Kind: KindInvalid, Op: op, Message: "at least one trunk id is required"}
	}

	var md string
	if len(req.Metadata) > 0 {
		b, err := json.Marshal(req.Metadata)
		if err != nil {
			return DispatchRule{}, &GatewayError{Kind: KindInvalid, Op: op, Message: "metadata is not serializable", Err: err}
		}
		md = string(b)
	}

	info, err := g.sip.CreateSIPDispatchRule(ctx, &livekit.CreateSIPDispatchRuleRequest{
		Rule: &livekit.SIPDispatchRule{
			Rule: &livekit.SIPDispatchRule_DispatchRuleIndividual{
				DispatchRuleIndividual: &livekit.SIPDispatchRuleIndividual{RoomPrefix: req.RoomPrefix},
			},
		},
		TrunkIds: req.TrunkIDs,
		Name:     req.Name,
		Metadata: md,
	})
	if err != nil {
		return DispatchRule{}, classifyTwirp(op, err)
	}
	return DispatchRule{ID: info.GetSipDispatchRuleId()}, nil
}

func (g *LiveKitGateway) DeleteDispatchRule(ctx context.Context, ruleID string) error {
	const op = "delete_dispatch_rule"
	if ruleID == "" {
		return &GatewayError{Kind: KindInvalid, Op: op, Message: "rule id is required"}
	}
	if _, err := g.sip.DeleteSIPDispatchRule(ctx, &livekit.DeleteSIPDispatchRuleRequest{SipDispatchRuleId: ruleID}); err != nil {
		return classifyTwirp(op, err)
	}
	return nil
}

func (g *LiveKitGateway) DeleteTrunk(ctx context.Context, trunkID string) error {
	const op = "delete_trunk"
	if trunkID == "" {
		return &GatewayError{Kind: KindInvalid, Op: op, Message: "trunk id is required"}
	}
	if _, err := g.sip.DeleteSIPTrunk(ctx, &livekit.DeleteSIPTrunkRequest{SipTrunkId: trunkID}); err != nil {
		return classifyTwirp(op, err)
	}
	return nil
}

func (g *LiveKitGateway) MintWorkerToken(identity string, ttl time.Duration, metadata map[string]any) (string, error) {
	return g.signer.MintWorkerToken(identity, ttl, metadata)
}

func classifyTwirp(op string, err error) *GatewayError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Kind: KindCanceled, Op: op, Message: err.Error(), Err: err}
	}

	var te twirp.Error
	if !errors.As(err, &te) {
		return &GatewayError{Kind: KindUnavailable, Op: op, Message: err.Error(), Err: err}
	}

	kind := KindUnknown
	switch te.Code() {
	case twirp.NotFound:
		kind = KindNotFound
	case twirp.InvalidArgument, twirp.Malformed, twirp.AlreadyExists, twirp.FailedPrecondition, twirp.OutOfRange:
		kind = KindInvalid
	case twirp.Unauthenticated, twirp.PermissionDenied:
		kind = KindAuth
	case twirp.ResourceExhausted:
		kind = KindRateLimited
	case twirp.Unavailable, twirp.Internal:
		kind = KindUnavailable
	case twirp.Canceled, twirp.DeadlineExceeded:
		kind = KindCanceled
	}
	return &GatewayError{Kind: kind, Op: op, Message: te.Msg(), Err: err}
}
