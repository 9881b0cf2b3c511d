// Package dbutil wraps storage operations in typed retry: WithConn
// classifies the error a storage operation returns and retries transient
// ones with the backoff profile appropriate to the failure. WithConn holds
// no connection itself; the wrapped function acquires and releases its own.
package dbutil

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/perpctl/controlplane/internal/logger"
)

// ErrorClass distinguishes the retry profile a storage error needs.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassNetwork
	ClassDeadlock
)

// Classify sorts a storage error into its retry profile: connection-lost /
// read of a closed socket / packet-sequence errors get network backoff;
// MySQL error 1213 (deadlock) gets the gentler deadlock backoff; everything
// else is treated as fatal (not retried).
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "use of closed network connection"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "packet sequence"),
		strings.Contains(msg, "eof"):
		return ClassNetwork
	case strings.Contains(msg, "1213"), strings.Contains(msg, "deadlock"):
		return ClassDeadlock
	}
	return ClassFatal
}

const maxAttempts = 3

// WithConn runs fn up to maxAttempts times, retrying only transient storage
// errors with the matching backoff profile; the connection-acquiring fn is
// expected to release its own connection on every exit path (e.g. via
// defer), so WithConn itself holds no resources across attempts.
func WithConn[T any](op string, fn func() (T, error)) (T, error) {
	netBackoff := &backoff.Backoff{Min: 500 * time.Millisecond, Factor: 2, Jitter: true}
	deadlockBackoff := &backoff.Backoff{Min: 1 * time.Second, Factor: 1.5, Jitter: true}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassFatal || attempt == maxAttempts {
			return zero, err
		}

		var wait time.Duration
		if class == ClassDeadlock {
			wait = deadlockBackoff.Duration()
		} else {
			wait = netBackoff.Duration()
		}
		logger.Warnf("⚠️  [storage] %s failed (attempt %d/%d, class=%d): %v — retrying in %s",
			op, attempt, maxAttempts, class, err, wait)
		time.Sleep(wait)
	}
	return zero, lastErr
}
