package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// actionablePhrases mark upstream failures the caller can fix, such as topping
// up credits or rotating a key
var actionablePhrases = []string{
	"insufficient credits",
	"quota",
	"rate limit",
	"unauthorized",
	"billing",
}

// Classify turns a stage failure into one of the job error kinds. External
// service errors pass through unchanged so their message reaches the caller
// close to verbatim. Deadline expiry becomes an external service error naming
// the stage, as does any error mentioning an actionable upstream condition.
// Anything else is wrapped as a generic stage failure.
func Classify(stage Stage, err error, timeout time.Duration) error {
	var externalErr *types.ExternalServiceError
	if errors.As(err, &externalErr) {
		return externalErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, types.ErrStageTimeout) {
		label := stage.Label
		if label == "" {
			label = stage.Name
		}
		return &types.ExternalServiceError{
			Service: stage.Name,
			Message: fmt.Sprintf("%s timed out after %s", label, timeout),
			Err:     types.ErrStageTimeout,
		}
	}

	if isActionable(err) {
		return &types.ExternalServiceError{Service: stage.Name, Message: err.Error(), Err: err}
	}

	var stageErr *types.PipelineStageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return &types.PipelineStageError{Stage: stage.Name, Err: err}
}

// IsTimeout reports whether a classified error is a timeout
func IsTimeout(err error) bool {
	return errors.Is(err, types.ErrStageTimeout)
}

func isActionable(err error) bool {
	message := strings.ToLower(err.Error())
	for _, phrase := range actionablePhrases {
		if strings.Contains(message, phrase) {
			return true
		}
	}
	return false
}
