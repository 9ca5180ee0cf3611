package deployment

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("deployment: agent not found")
	ErrInvalidArgument  = errors.New("deployment: invalid argument")
	ErrAlreadyDeployed  = errors.New("deployment: agent already deployed")
	ErrDeployInProgress = errors.New("deployment: deployment in progress")
	ErrNumberNotOwned   = errors.New("deployment: phone number not owned")
)

// Stage names the external call or local step a flow was executing.
type Stage string

const (
	StageFindNumber         Stage = "find_number"
	StageCreateCarrierTrunk Stage = "create_carrier_trunk"
	StageSetOrigination     Stage = "set_origination"
	StageAttachNumber       Stage = "attach_number"
	StageCreateGatewayTrunk Stage = "create_gateway_trunk"
	StageCreateDispatchRule Stage = "create_dispatch_rule"
	StageMintToken          Stage = "mint_token"
	StagePersist            Stage = "persist"

	StageDeleteDispatchRule Stage = "delete_dispatch_rule"
	StageDeleteGatewayTrunk Stage = "delete_gateway_trunk"
	StageDeleteCarrierTrunk Stage = "delete_carrier_trunk"
	StageClearRecord        Stage = "clear_record"
)

// StageError reports which stage of a flow failed. The wrapped error is the
// original failure; compensation errors never replace it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("deployment: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failing stage of err, or "" if err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
