package telephony

import (
	"context"
	"errors"
	"fmt"
)

// Carrier is the provider-agnostic contract over a telephony carrier.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - No retries here; retry policy belongs to the caller.
// - Every failure is returned as a *CarrierError.
type Carrier interface {
	// FindNumber looks up a number owned by the account. Absent numbers fail with KindNotFound.
	FindNumber(ctx context.Context, e164 string) (NumberRecord, error)
	CreateTrunk(ctx context.Context, friendlyName string) (TrunkHandle, error)
	SetOriginationTarget(ctx context.Context, trunk TrunkHandle, target OriginationTarget) error
	AttachNumber(ctx context.Context, trunk TrunkHandle, number NumberRecord) error
	DeleteTrunk(ctx context.Context, trunk TrunkHandle) error
}

// NumberRecord is a phone number owned at the carrier.
type NumberRecord struct {
	SID          string `json:"sid"`
	E164         string `json:"e164"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// TrunkHandle identifies a carrier-side trunk container.
type TrunkHandle struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// OriginationTarget points a trunk at the media gateway's SIP ingestion endpoint.
type OriginationTarget struct {
	SIPURI   string `json:"sip_uri"`
	Weight   int    `json:"weight"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// DefaultOriginationTarget is a single enabled route with weight 1 and priority 1.
func DefaultOriginationTarget(sipURI string) OriginationTarget {
	return OriginationTarget{SIPURI: sipURI, Weight: 1, Priority: 1, Enabled: true}
}

type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindInvalid     ErrorKind = "invalid"
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindUnavailable ErrorKind = "unavailable"
	KindCanceled    ErrorKind = "canceled"
	KindUnknown     ErrorKind = "unknown"
)

// CarrierError is the only error type returned by Carrier implementations.
type CarrierError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *CarrierError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("carrier %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("carrier: %s: %s", e.Kind, e.Message)
}

func (e *CarrierError) Unwrap() error { return e.Err }

// KindOf returns the carrier error kind of err, or "" if err is not a *CarrierError.
func KindOf(err error) ErrorKind {
	var ce *CarrierError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsNotFound reports whether err is a carrier not_found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func contextError(op string, err error) *CarrierError {
	return &CarrierError{Kind: KindCanceled, Op: op, Message: err.Error(), Err: err}
}
