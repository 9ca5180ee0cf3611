package sipgateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Gateway is the contract over the SIP/real-time media gateway.
// Every failure is returned as a *GatewayError.
type Gateway interface {
	CreateInboundTrunk(ctx context.Context, req InboundTrunkRequest) (Trunk, error)
	CreateDispatchRule(ctx context.Context, req DispatchRuleRequest) (DispatchRule, error)
	DeleteDispatchRule(ctx context.Context, ruleID string) error
	DeleteTrunk(ctx context.Context, trunkID string) error

	// MintWorkerToken signs a capability token for a call-handling worker.
	MintWorkerToken(identity string, ttl time.Duration, metadata map[string]any) (string, error)
}

type InboundTrunkRequest struct {
	Name             string
	Numbers          []string
	AllowedAddresses []string
	AllowedNumbers   []string
}

type Trunk struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// DispatchRuleRequest routes each inbound call on TrunkIDs into its own room
// named with RoomPrefix. Metadata is attached to the dispatched session.
type DispatchRuleRequest struct {
	Name       string
	RoomPrefix string
	TrunkIDs   []string
	Metadata   map[string]any
}

type DispatchRule struct {
	ID string `json:"id"`
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

type GatewayError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// KindOf returns the gateway error kind of err, or "" if err is not a *GatewayError.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
