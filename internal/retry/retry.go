// Package retry runs an operation at a fixed interval until it succeeds.
//
// It is used to mask transient "device busy" failures while releasing a
// device. The default is to retry forever: a detach that gives up would leave
// a binding pointing at a device the backend still holds.
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultInterval is the delay between attempts.
const DefaultInterval = 100 * time.Millisecond

// Options controls the retry loop.
type Options struct {
	// Interval between attempts. Zero uses DefaultInterval.
	Interval time.Duration
	// MaxAttempts bounds the number of attempts. Zero retries until the
	// operation succeeds or ctx is cancelled.
	MaxAttempts int
}

// Do calls fn until it returns nil. Failures are logged at debug level and
// not returned, unless MaxAttempts is exhausted or ctx is done, in which
// case the last failure is returned.
func Do(ctx context.Context, opts Options, log logrus.FieldLogger, fn func(ctx context.Context) error) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var lastErr error
	attempt := 0
	condition := func(ctx context.Context) (bool, error) {
		attempt++
		lastErr = fn(ctx)
		if lastErr == nil {
			return true, nil
		}
		log.WithError(lastErr).WithField("attempt", attempt).Debug("Operation failed, retrying")
		return false, nil
	}

	var err error
	if opts.MaxAttempts > 0 {
		err = wait.ExponentialBackoffWithContext(ctx, wait.Backoff{
			Duration: interval,
			Factor:   1.0,
			Steps:    opts.MaxAttempts,
		}, condition)
	} else {
		err = wait.PollUntilContextCancel(ctx, interval, true, condition)
	}

	if err != nil {
		if lastErr != nil {
			return errors.Wrapf(lastErr, "gave up after %d attempts", attempt)
		}
		return err
	}
	return nil
}
