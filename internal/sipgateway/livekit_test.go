package sipgateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchtv/twirp"
)

type stubSIP struct {
	inbound  *livekit.CreateSIPInboundTrunkRequest
	dispatch *livekit.CreateSIPDispatchRuleRequest
	deleted  []string
	err      error
}

func (s *stubSIP) CreateSIPInboundTrunk(_ context.Context, in *livekit.CreateSIPInboundTrunkRequest) (*livekit.SIPInboundTrunkInfo, error) {
	s.inbound = in
	if s.err != nil {
		return nil, s.err
	}
	return &livekit.SIPInboundTrunkInfo{SipTrunkId: "ST_1", Name: in.GetTrunk().GetName()}, nil
}

func (s *stubSIP) CreateSIPDispatchRule(_ context.Context, in *livekit.CreateSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error) {
	s.dispatch = in
	if s.err != nil {
		return nil, s.err
	}
	return &livekit.SIPDispatchRuleInfo{SipDispatchRuleId: "SDR_1"}, nil
}

func (s *stubSIP) DeleteSIPDispatchRule(_ context.Context, in *livekit.DeleteSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error) {
	s.deleted = append(s.deleted, in.GetSipDispatchRuleId())
	return &livekit.SIPDispatchRuleInfo{}, s.err
}

func (s *stubSIP) DeleteSIPTrunk(_ context.Context, in *livekit.DeleteSIPTrunkRequest) (*livekit.SIPTrunkInfo, error) {
	s.deleted = append(s.deleted, in.GetSipTrunkId())
	return &livekit.SIPTrunkInfo{}, s.err
}

func newTestGateway(t *testing.T, sip *stubSIP) *LiveKitGateway {
	t.Helper()
	signer, err := NewTokenSigner("APIkey", "secret")
	require.NoError(t, err)
	return &LiveKitGateway{sip: sip, signer: signer}
}

func TestLiveKitGateway_CreateInboundTrunk(t *testing.T) {
	sip := &stubSIP{}
	g := newTestGateway(t, sip)

	tr, err := g.CreateInboundTrunk(context.Background(), InboundTrunkRequest{
		Name:    "agent-a1",
		Numbers: []string{"+15551234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ST_1", tr.ID)
	assert.Equal(t, []string{"+15551234567"}, sip.inbound.GetTrunk().GetNumbers())
}

func TestLiveKitGateway_CreateDispatchRule(t *testing.T) {
	sip := &stubSIP{}
	g := newTestGateway(t, sip)

	rule, err := g.CreateDispatchRule(context.Background(), DispatchRuleRequest{
		Name:       "agent-a1",
		RoomPrefix: "call",
		TrunkIDs:   []string{"ST_1"},
		Metadata:   map[string]any{"agentId": "a1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SDR_1", rule.ID)

	ind := sip.dispatch.GetRule().GetDispatchRuleIndividual()
	require.NotNil(t, ind)
	assert.Equal(t, "call", ind.GetRoomPrefix())
	assert.Equal(t, []string{"ST_1"}, sip.dispatch.GetTrunkIds())

	var md map[string]string
	require.NoError(t, json.Unmarshal([]byte(sip.dispatch.GetMetadata()), &md))
	assert.Equal(t, "a1", md["agentId"])
}

func TestLiveKitGateway_DeleteTrunk(t *testing.T) {
	sip := &stubSIP{}
	g := newTestGateway(t, sip)

	require.NoError(t, g.DeleteTrunk(context.Background(), "ST_1"))
	assert.Equal(t, []string{"ST_1"}, sip.deleted)

	assert.Equal(t, KindInvalid, KindOf(g.DeleteTrunk(context.Background(), "")))
}

func TestLiveKitGateway_MapsErrors(t *testing.T) {
	sip := &stubSIP{err: twirp.NewError(twirp.NotFound, "no such trunk")}
	g := newTestGateway(t, sip)

	err := g.DeleteTrunk(context.Background(), "ST_missing")
	assert.Equal(t, KindNotFound, KindOf(err))

	sip.err = twirp.NewError(twirp.Unauthenticated, "bad key")
	_, err = g.CreateInboundTrunk(context.Background(), InboundTrunkRequest{Name: "x"})
	assert.Equal(t, KindAuth, KindOf(err))

	sip.err = context.DeadlineExceeded
	_, err = g.CreateInboundTrunk(context.Background(), InboundTrunkRequest{Name: "x"})
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	sip.err = errors.New("connection refused")
	_, err = g.CreateInboundTrunk(context.Background(), InboundTrunkRequest{Name: "x"})
	assert.Equal(t, KindUnavailable, KindOf(err))
}
