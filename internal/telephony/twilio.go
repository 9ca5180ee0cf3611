package telephony

import (
	"context"
	"errors"
	"net/http"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	trunking "github.com/twilio/twilio-go/rest/trunking/v1"
)

// numbersAPI is the subset of the Twilio REST API used for number lookup.
type numbersAPI interface {
	ListIncomingPhoneNumber(params *api.ListIncomingPhoneNumberParams) ([]api.ApiV2010IncomingPhoneNumber, error)
}

// trunkingAPI is the subset of Twilio Elastic SIP Trunking used here.
type trunkingAPI interface {
	CreateTrunk(params *trunking.CreateTrunkParams) (*trunking.TrunkingV1Trunk, error)
	CreateOriginationUrl(trunkSid string, params *trunking.CreateOriginationUrlParams) (*trunking.TrunkingV1OriginationUrl, error)
	CreatePhoneNumber(trunkSid string, params *trunking.CreatePhoneNumberParams) (*trunking.TrunkingV1PhoneNumber, error)
	DeleteTrunk(sid string) error
}

// TwilioCarrier implements Carrier on top of twilio-go.
//
// The Twilio SDK does not take a context; ctx is checked before each request
// so a canceled deployment stops issuing new calls. A request already in flight
// runs to completion and its result is returned, so the caller can compensate.
type TwilioCarrier struct {
	numbers numbersAPI
	trunks  trunkingAPI
}

// NewTwilioCarrier builds a carrier client from account credentials.
func NewTwilioCarrier(accountSID, authToken string) *TwilioCarrier {
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioCarrier{numbers: rc.Api, trunks: rc.TrunkingV1}
}

func (t *TwilioCarrier) FindNumber(ctx context.Context, e164 string) (NumberRecord, error) {
	const op = "find_number"
	if err := ctx.Err(); err != nil {
		return NumberRecord{}, contextError(op, err)
	}

	params := &api.ListIncomingPhoneNumberParams{}
	params.SetPhoneNumber(e164)
	params.SetLimit(1)

	list, err := t.numbers.ListIncomingPhoneNumber(params)
	if err != nil {
		return NumberRecord{}, classifyTwilio(op, err)
	}
	if len(list) == 0 || list[0].Sid == nil {
		return NumberRecord{}, &CarrierError{Kind: KindNotFound, Op: op, Message: "number not owned by account"}
	}

	rec := NumberRecord{SID: *list[0].Sid, E164: e164}
	if list[0].FriendlyName != nil {
		rec.FriendlyName = *list[0].FriendlyName
	}
	return rec, nil
}

func (t *TwilioCarrier) CreateTrunk(ctx context.Context, friendlyName string) (TrunkHandle, error) {
	const op = "create_trunk"
	if err := ctx.Err(); err != nil {
		return TrunkHandle{}, contextError(op, err)
	}

	params := &trunking.CreateTrunkParams{}
	params.SetFriendlyName(friendlyName)

	tr, err := t.trunks.CreateTrunk(params)
	if err != nil {
		return TrunkHandle{}, classifyTwilio(op, err)
	}
	if tr == nil || tr.Sid == nil {
		return TrunkHandle{}, &CarrierError{Kind: KindUnknown, Op: op, Message: "trunk created without sid"}
	}
	return TrunkHandle{SID: *tr.Sid, FriendlyName: friendlyName}, nil
}

func (t *TwilioCarrier) SetOriginationTarget(ctx context.Context, trunk TrunkHandle, target OriginationTarget) error {
	const op = "set_origination_target"
	if err := ctx.Err(); err != nil {
		return contextError(op, err)
	}
	if trunk.SID == "" || target.SIPURI == "" {
		return &CarrierError{Kind: KindInvalid, Op: op, Message: "trunk sid and sip uri are required"}
	}

	params := &trunking.CreateOriginationUrlParams{}
	params.SetSipUrl(target.SIPURI)
	params.SetWeight(target.Weight)
	params.SetPriority(target.Priority)
	params.SetEnabled(target.Enabled)
	params.SetFriendlyName(trunk.FriendlyName + "-origination")

	if _, err := t.trunks.CreateOriginationUrl(trunk.SID, params); err != nil {
		return classifyTwilio(op, err)
	}
	return nil
}

func (t *TwilioCarrier) AttachNumber(ctx context.Context, trunk TrunkHandle, number NumberRecord) error {
	const op = "attach_number"
	if err := ctx.Err(); err != nil {
		return contextError(op, err)
	}
	if trunk.SID == "" || number.SID == "" {
		return &CarrierError{Kind: KindInvalid, Op: op, Message: "trunk sid and number sid are required"}
	}

	params := &trunking.CreatePhoneNumberParams{}
	params.SetPhoneNumberSid(number.SID)

	if _, err := t.trunks.CreatePhoneNumber(trunk.SID, params); err != nil {
		return classifyTwilio(op, err)
	}
	return nil
}

func (t *TwilioCarrier) DeleteTrunk(ctx context.Context, trunk TrunkHandle) error {
	const op = "delete_trunk"
	if err := ctx.Err(); err != nil {
		return contextError(op, err)
	}
	if trunk.SID == "" {
		return &CarrierError{Kind: KindInvalid, Op: op, Message: "trunk sid is required"}
	}
	if err := t.trunks.DeleteTrunk(trunk.SID); err != nil {
		return classifyTwilio(op, err)
	}
	return nil
}

// classifyTwilio maps a twilio-go error onto a CarrierError kind.
func classifyTwilio(op string, err error) *CarrierError {
	var rest *twclient.TwilioRestError
	if !errors.As(err, &rest) {
		return &CarrierError{Kind: KindUnavailable, Op: op, Message: err.Error(), Err: err}
	}

	kind := KindUnknown
	switch {
	case rest.Status == http.StatusNotFound:
		kind = KindNotFound
	case rest.Status == http.StatusUnauthorized || rest.Status == http.StatusForbidden:
		kind = KindAuth
	case rest.Status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case rest.Status == http.StatusBadRequest || rest.Status == http.StatusConflict || rest.Status == http.StatusUnprocessableEntity:
		kind = KindInvalid
	case rest.Status >= 500:
		kind = KindUnavailable
	}
	return &CarrierError{Kind: kind, Op: op, Message: rest.Message, Err: err}
}
