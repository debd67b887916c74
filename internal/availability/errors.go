package availability

import (
	"fmt"
	"strings"
)

type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type FailedOp struct {
	Kind OpKind
	Time string
	ID   int64
	Err  error
}

// BatchError reports the calls of a multi-call day edit that failed. Every
// planned call was attempted once. Reconciled tells whether the day was
// then rebuilt from the backend listing.
type BatchError struct {
	VolunteerID int64
	Day         string
	Attempted   int
	Failed      []FailedOp
	Reconciled  bool
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s %s: %v", f.Kind, f.Time, f.Err))
	}
	return fmt.Sprintf("volunteer %d day %s: %d of %d calls failed (%s)",
		e.VolunteerID, e.Day, len(e.Failed), e.Attempted, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Err)
	}
	return out
}
