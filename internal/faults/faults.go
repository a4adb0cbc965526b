// Package faults classifies sync failures so the engine can decide between
// retry, reschedule, and cycle abort.
//
// Errors are tagged with one of the exported sentinel markers via Wrap and
// inspected with errors.Is. Transient failures (no connectivity, timeouts)
// are retried with backoff; remote rejections are parked with a longer
// reschedule; storage faults abort the running cycle.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrTransient marks connectivity losses and timeouts worth retrying soon.
	ErrTransient = errors.New("transient failure")
	// ErrRejected marks remote rejections (malformed payload, permission
	// denied) that need a longer reschedule and operator attention.
	ErrRejected = errors.New("remote rejection")
	// ErrStorage marks local store faults that abort the current cycle.
	ErrStorage = errors.New("storage fault")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation string, err error) error {
	detail := buildDetail(component, operation)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err should be retried with backoff. Untagged
// network-level errors (timeouts, refused connections, context deadline)
// classify as transient as well.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrStorage) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host")
}

// IsRejected reports whether the remote store rejected the operation outright.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsStorage reports whether a local store fault occurred.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Kind returns a short classification label for logging and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case IsTransient(err):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation string) string {
	parts := make([]string, 0, 2)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "sync failure"
	}
	return strings.Join(parts, ": ")
}
