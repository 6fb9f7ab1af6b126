package targets

import (
	"context"
	"fmt"
)

// Status describes the outcome of a single target within a run.
type Status int

const (
	// StatusPending marks a target that hasn't been scheduled, yet.
	StatusPending Status = iota
	// StatusDone marks a target whose action completed successfully (or that
	// never had an action to begin with).
	StatusDone
	// StatusSkipped marks a target whose action decided that it had nothing to
	// do, for example because an optional credential is missing. A skip counts
	// as success for everything that depends on the target.
	StatusSkipped
	// StatusFailed marks the target whose action aborted the run.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Action is the unit of work attached to a target. It either succeeds
// (StatusDone), declares that there was nothing to do (StatusSkipped) or
// fails by returning an error. The returned status is ignored if the error
// is non-nil.
type Action func(ctx context.Context) (Status, error)

// Target is a named node in the dependency graph. Deps lists the names of
// other targets which have to complete before this one runs; the order of
// the list decides tie-breaks in the execution order. Targets without an
// action only aggregate their dependencies.
type Target struct {
	Name   string
	Desc   string
	Deps   []string
	Action Action
}

func (t *Target) String() string {
	return fmt.Sprintf("<Target %s: %s>", t.Name, t.Desc)
}
