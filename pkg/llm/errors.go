package llm

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned by the stub provider. Callers degrade instead of failing.
var ErrModelUnavailable = errors.New("model capability unavailable")

// ErrorKind classifies a model invocation failure where it happens.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindQuotaOrRegion
	KindNetwork
	KindMisconfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuotaOrRegion:
		return "quota_or_region"
	case KindNetwork:
		return "network"
	case KindMisconfiguration:
		return "misconfiguration"
	default:
		return "unknown"
	}
}

// Error is a provider failure with its kind attached.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when it was never classified.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// KindForStatus maps an HTTP status returned by a model API to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403 || status == 429 || status == 451 || status == 402:
		return KindQuotaOrRegion
	case status == 400 || status == 404 || status == 422:
		return KindMisconfiguration
	case status == 502 || status == 503 || status == 504:
		return KindNetwork
	default:
		return KindUnknown
	}
}
