package publishing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autopublisher/internal/metrics"
	"github.com/jonathan/autopublisher/internal/types"
)

// RetryPolicy controls RetryPublish.
type RetryPolicy struct {
	MaxAttempts int
	// Delay is multiplied by the attempt number: attempt k waits Delay*k before attempt k+1.
	Delay time.Duration
	// Sleep waits for d or until ctx is done. Defaults to SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts with a 5 second linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
	}
}

// RetryPublish calls p.Publish until it returns a published response or the
// attempts are exhausted, waiting Delay*attempt between attempts. It never
// returns nil. RetryCount on the result is the number of attempts after the
// first.
func RetryPublish(ctx context.Context, p Publisher, req *types.PublicationRequest, policy RetryPolicy) *types.PublicationResponse {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	platform := p.Platform()

	var lastErr string
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		resp, err := publishOnce(ctx, p, req)
		switch {
		case err != nil:
			lastErr = err.Error()
			metrics.RecordPublishAttempt(string(platform), "error")
		case resp.Published():
			metrics.RecordPublishAttempt(string(platform), string(resp.Status))
			resp.RetryCount = attempt - 1
			return resp
		default:
			lastErr = resp.ErrorMessage
			metrics.RecordPublishAttempt(string(platform), string(resp.Status))
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, policy.Delay*time.Duration(attempt)); err != nil {
			lastErr = fmt.Sprintf("%s (stopped: %v)", lastErr, err)
			break
		}
	}

	resp := failedResponse(platform, fmt.Sprintf("Failed after %d attempts. Last error: %s", attempts, lastErr))
	resp.PublicationID = fmt.Sprintf("failed_%s_%s", platform, uuid.NewString())
	resp.RetryCount = attempts - 1
	return resp
}

// publishOnce runs one attempt, converting a panic or a nil response into an error.
func publishOnce(ctx context.Context, p Publisher, req *types.PublicationRequest) (resp *types.PublicationResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()
	resp = p.Publish(ctx, req)
	if resp == nil {
		return nil, fmt.Errorf("publisher returned no response")
	}
	return resp, nil
}
