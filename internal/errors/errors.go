// Package errors defines the failure taxonomy of a pipeline run.
//
// Every non-fatal failure carries a Kind so the orchestrator can decide
// whether to retry it, record it, or fall back. Only FatalIOError moves a run
// to the Failed state.
//
// Usage:
//
//	import mrerrors "meeting-router-go/internal/errors"
//
//	if mrerrors.IsRetryable(err) {
//	    // back off and try again
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies an external-call failure.
type Kind string

const (
	KindNone      Kind = ""
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindNetwork   Kind = "network"
	KindUnknown   Kind = "unknown"
)

// KindInfo contains metadata about a failure kind.
type KindInfo struct {
	Kind        Kind
	Retryable   bool
	Description string
}

// KindRegistry maps kinds to their metadata.
var KindRegistry = map[Kind]KindInfo{
	KindAuth: {
		Kind:        KindAuth,
		Retryable:   false,
		Description: "Credentials rejected by the remote service",
	},
	KindRateLimit: {
		Kind:        KindRateLimit,
		Retryable:   true,
		Description: "Remote service rate limit exceeded",
	},
	KindNetwork: {
		Kind:        KindNetwork,
		Retryable:   true,
		Description: "Remote service unreachable or failing",
	},
	KindUnknown: {
		Kind:        KindUnknown,
		Retryable:   false,
		Description: "Unclassified failure",
	},
}

// Retryable reports whether failures of kind k are worth retrying.
func (k Kind) Retryable() bool {
	if info, ok := KindRegistry[k]; ok {
		return info.Retryable
	}
	return false
}

// ErrNotDelivered is returned by a notification sink that answered without posting.
var ErrNotDelivered = errors.New("notification not delivered")

// ParseError reports a malformed transcript segment. Never fatal.
type ParseError struct {
	Offset int
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

// ScoringError reports a sentiment scorer failure for one context window.
type ScoringError struct {
	Window string
	Cause  error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed: %v", e.Cause)
}

func (e *ScoringError) Unwrap() error { return e.Cause }

// DispatchError reports a task sink failure for one action item.
type DispatchError struct {
	Kind    Kind
	Backend string
	Status  int
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s dispatch failed (status %d): %v", e.Kind, e.Backend, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s: %s dispatch failed: %v", e.Kind, e.Backend, e.Cause)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

// NotificationError reports a notification sink failure.
type NotificationError struct {
	Kind    Kind
	Channel string
	Cause   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s: %s notification failed: %v", e.Kind, e.Channel, e.Cause)
}

func (e *NotificationError) Unwrap() error { return e.Cause }

// FatalIOError is the only failure that aborts a run: the transcript could
// not be read, or the fallback store could not persist the summary.
type FatalIOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *FatalIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fatal io: %s %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("fatal io: %s: %v", e.Op, e.Cause)
}

func (e *FatalIOError) Unwrap() error { return e.Cause }

// KindFromStatus maps an HTTP status code to a Kind.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status >= 500:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// KindOf inspects err and returns its Kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ne *NotificationError
	if errors.As(err, &ne) {
		return ne.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "ratelimited"):
		return KindRateLimit
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid_auth") || strings.Contains(lower, "not_authed"):
		return KindAuth
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// IsFatal reports whether err must move the run to Failed.
func IsFatal(err error) bool {
	var fe *FatalIOError
	return errors.As(err, &fe)
}
