package telephony

import (
	"context"
	"errors"
	"net/http"
	"testing"

	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	trunking "github.com/twilio/twilio-go/rest/trunking/v1"
)

type stubNumbers struct {
	list []api.ApiV2010IncomingPhoneNumber
	err  error
	seen string
}

func (s *stubNumbers) ListIncomingPhoneNumber(p *api.ListIncomingPhoneNumberParams) ([]api.ApiV2010IncomingPhoneNumber, error) {
	if p.PhoneNumber != nil {
		s.seen = *p.PhoneNumber
	}
	return s.list, s.err
}

type stubTrunking struct {
	createErr error
	origErr   error
	attachErr error
	deleteErr error

	origination *trunking.CreateOriginationUrlParams
	attachedSID string
	deleted     []string
}

func (s *stubTrunking) CreateTrunk(p *trunking.CreateTrunkParams) (*trunking.TrunkingV1Trunk, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	sid := "TK123"
	return &trunking.TrunkingV1Trunk{Sid: &sid, FriendlyName: p.FriendlyName}, nil
}

func (s *stubTrunking) CreateOriginationUrl(_ string, p *trunking.CreateOriginationUrlParams) (*trunking.TrunkingV1OriginationUrl, error) {
	s.origination = p
	return &trunking.TrunkingV1OriginationUrl{}, s.origErr
}

func (s *stubTrunking) CreatePhoneNumber(_ string, p *trunking.CreatePhoneNumberParams) (*trunking.TrunkingV1PhoneNumber, error) {
	if p.PhoneNumberSid != nil {
		s.attachedSID = *p.PhoneNumberSid
	}
	return &trunking.TrunkingV1PhoneNumber{}, s.attachErr
}

func (s *stubTrunking) DeleteTrunk(sid string) error {
	s.deleted = append(s.deleted, sid)
	return s.deleteErr
}

func strPtr(s string) *string { return &s }

func TestTwilioCarrier_FindNumber(t *testing.T) {
	nums := &stubNumbers{list: []api.ApiV2010IncomingPhoneNumber{{Sid: strPtr("PN1"), FriendlyName: strPtr("main")}}}
	c := &TwilioCarrier{numbers: nums, trunks: &stubTrunking{}}

	rec, err := c.FindNumber(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.SID != "PN1" || rec.E164 != "+15551234567" || rec.FriendlyName != "main" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if nums.seen != "+15551234567" {
		t.Fatalf("expected lookup by e164, got %q", nums.seen)
	}
}

func TestTwilioCarrier_FindNumber_NotOwned(t *testing.T) {
	c := &TwilioCarrier{numbers: &stubNumbers{}, trunks: &stubTrunking{}}

	_, err := c.FindNumber(context.Background(), "+15551234567")
	if !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTwilioCarrier_TrunkLifecycle(t *testing.T) {
	tr := &stubTrunking{}
	c := &TwilioCarrier{numbers: &stubNumbers{}, trunks: tr}
	ctx := context.Background()

	h, err := c.CreateTrunk(ctx, "agent-a1-1")
	if err != nil || h.SID != "TK123" {
		t.Fatalf("create trunk: h=%+v err=%v", h, err)
	}

	if err := c.SetOriginationTarget(ctx, h, DefaultOriginationTarget("sip:gw.example.com")); err != nil {
		t.Fatalf("set origination: %v", err)
	}
	if tr.origination == nil || *tr.origination.SipUrl != "sip:gw.example.com" || *tr.origination.Weight != 1 || *tr.origination.Priority != 1 || !*tr.origination.Enabled {
		t.Fatalf("unexpected origination params: %+v", tr.origination)
	}

	if err := c.AttachNumber(ctx, h, NumberRecord{SID: "PN1"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if tr.attachedSID != "PN1" {
		t.Fatalf("expected PN1 attached, got %q", tr.attachedSID)
	}

	if err := c.DeleteTrunk(ctx, h); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(tr.deleted) != 1 || tr.deleted[0] != "TK123" {
		t.Fatalf("unexpected deletes: %v", tr.deleted)
	}
}

func TestTwilioCarrier_CanceledContextSkipsCall(t *testing.T) {
	tr := &stubTrunking{}
	c := &TwilioCarrier{numbers: &stubNumbers{}, trunks: tr}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.DeleteTrunk(ctx, TrunkHandle{SID: "TK1"})
	if KindOf(err) != KindCanceled {
		t.Fatalf("expected canceled kind, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
	if len(tr.deleted) != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestClassifyTwilio(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindInvalid},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusTeapot, KindUnknown},
	}
	for _, tc := range cases {
		err := classifyTwilio("op", &twclient.TwilioRestError{Status: tc.status, Message: "boom"})
		if err.Kind != tc.want {
			t.Fatalf("status %d: got %s want %s", tc.status, err.Kind, tc.want)
		}
	}

	if got := classifyTwilio("op", errors.New("dial tcp: timeout")); got.Kind != KindUnavailable {
		t.Fatalf("transport errors should be unavailable, got %s", got.Kind)
	}
}
