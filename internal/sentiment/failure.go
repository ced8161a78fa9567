package sentiment

import (
	"context"
	"errors"
	"strings"

	"github.com/spacesedan/ytsentiment/internal/models"
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTransient
	FailureQuota
	FailureParse
	FailureFatal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureQuota:
		return "quota"
	case FailureParse:
		return "parse"
	case FailureFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Failure is a classified error from one classification attempt.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of one classification attempt: either a record or a failure.
type Outcome struct {
	Record  models.SentimentRecord
	Failure *Failure
}

func (o Outcome) OK() bool { return o.Failure == nil }

// ErrFatal marks call errors that retrying cannot fix, such as rejected credentials.
var ErrFatal = errors.New("fatal classification error")

// FailureClassifier maps a call error to a failure kind.
type FailureClassifier func(err error) FailureKind

// ClassifyFailure detects quota exhaustion the way the upstream APIs report
// it, by the error text mentioning "quota" or an HTTP 429. Fatal errors and
// context errors are not retried.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrFatal) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureFatal
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "quota") || strings.Contains(msg, "429") {
		return FailureQuota
	}
	return FailureTransient
}
