package pose

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-posedrive/internal/log"
)

// ErrNoEstimator is returned by NewChain without estimators.
var ErrNoEstimator = errors.New("pose: no estimator configured")

// Chain tries estimators in order until one succeeds. A frame with no body
// is a success; only errors fall through to the next estimator.
type Chain struct {
	estimators []Estimator
}

// NewChain creates an estimator chain.
func NewChain(estimators ...Estimator) (*Chain, error) {
	if len(estimators) == 0 {
		return nil, ErrNoEstimator
	}
	return &Chain{estimators: estimators}, nil
}

// Estimate implements Estimator.
func (c *Chain) Estimate(ctx context.Context, jpeg []byte) ([]Pose, error) {
	var errs []error
	for i, e := range c.estimators {
		poses, err := e.Estimate(ctx, jpeg)
		if err == nil {
			if i > 0 {
				log.Debug("fallback estimator succeeded", "index", i)
			}
			return poses, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < len(c.estimators)-1 {
			log.Debug("estimator failed, trying next", "index", i, "error", err)
		}
	}
	return nil, &ChainError{Errors: errs}
}

// Close closes every estimator and returns the last failure.
func (c *Chain) Close() error {
	var lastErr error
	for _, e := range c.estimators {
		if err := e.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Len returns the number of estimators.
func (c *Chain) Len() int {
	return len(c.estimators)
}

// ChainError aggregates the errors of a chain where every estimator failed.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("pose chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("pose chain: all %d estimators failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

var _ Estimator = (*Chain)(nil)
