package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-agent-platform/internal/billing"
	"voice-agent-platform/internal/deployment"
	"voice-agent-platform/internal/usage"
)

// writeError maps domain errors to HTTP responses. Unknown errors are 500s and
// their text is not echoed to the caller.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	status, msg := statusFor(err)
	body := gin.H{"error": msg}
	if stage := deployment.StageOf(err); stage != "" {
		body["stage"] = string(stage)
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, deployment.ErrInvalidArgument),
		errors.Is(err, usage.ErrInvalidRecord),
		errors.Is(err, billing.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, deployment.ErrNumberNotOwned):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, deployment.ErrNotFound):
		return http.StatusNotFound, "agent not found"
	case errors.Is(err, deployment.ErrAlreadyDeployed),
		errors.Is(err, deployment.ErrDeployInProgress),
		errors.Is(err, billing.ErrRunInProgress):
		return http.StatusConflict, err.Error()
	default:
		if deployment.StageOf(err) != "" {
			return http.StatusInternalServerError, "deployment failed"
		}
		return http.StatusInternalServerError, "internal error"
	}
}
