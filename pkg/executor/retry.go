package executor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/selector"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

var errNotYet = errors.New("no match yet")

// retryStale runs op until it returns something other than a stale element
// error or the stale timeout elapses. The last stale error is returned on
// timeout. Any other error stops the loop at once.
func (e *Executor) retryStale(ctx context.Context, what string, op func() error) error {
	rctx, cancel := context.WithTimeout(ctx, e.opts.StaleTimeout)
	defer cancel()

	var (
		attempt   int
		lastStale error
	)
	b := backoff.WithContext(backoff.NewConstantBackOff(e.opts.StaleRetryInterval), rctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if core.IsStale(err) {
			lastStale = err
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, next time.Duration) {
		logger.WithFields(logrus.Fields{
			"op":      what,
			"attempt": attempt,
			"next":    next,
		}).Debugf("retrying after stale element: %v", err)
	})

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if err != nil && lastStale != nil && ctx.Err() == nil && rctx.Err() != nil {
		logger.Warn("%s: stale element persisted for %s", what, e.opts.StaleTimeout)
		return lastStale
	}
	return err
}

// waitForMatch polls until pred matches some node in the whole tree or the
// wait timeout elapses. It returns the roots of the last hierarchy read so
// the caller resolves against what it just saw. A timeout is not an error.
func (e *Executor) waitForMatch(ctx context.Context, pred *selector.Predicate) ([]uitree.NodeID, error) {
	wctx, cancel := context.WithTimeout(ctx, e.opts.WaitTimeout)
	defer cancel()

	var roots []uitree.NodeID
	b := backoff.WithContext(backoff.NewConstantBackOff(e.opts.PollInterval), wctx)
	err := backoff.Retry(func() error {
		var err error
		roots, err = e.tree.Roots(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		p := &pass{ctx: ctx, tree: e.tree, roots: roots}
		found, err := p.matchAll(pred)
		switch {
		case core.IsStale(err):
			return errNotYet
		case err != nil:
			return backoff.Permanent(err)
		case len(found) == 0:
			return errNotYet
		}
		return nil
	}, b)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	switch {
	case err == nil:
		return roots, nil
	case errors.Is(err, errNotYet) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil):
		logger.Debug("no match after %s, resolving anyway", e.opts.WaitTimeout)
		return roots, nil
	}
	return nil, err
}

// pollUntil evaluates cond every poll interval until it holds or timeout
// elapses. Errors from cond stop the loop. A timeout yields false.
func (e *Executor) pollUntil(ctx context.Context, timeout time.Duration, cond func() (bool, error)) (bool, error) {
	if timeout <= 0 {
		timeout = e.opts.WaitTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewConstantBackOff(e.opts.PollInterval), wctx)
	err := backoff.Retry(func() error {
		ok, err := cond()
		switch {
		case err != nil:
			return backoff.Permanent(err)
		case !ok:
			return errNotYet
		}
		return nil
	}, b)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotYet) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil):
		logger.Debug("condition not met after %s", timeout)
		return false, nil
	}
	return false, err
}
