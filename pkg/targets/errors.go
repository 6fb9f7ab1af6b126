package targets

import (
	"fmt"
	"strings"
)

// UnknownTargetError is returned when a requested target or a declared
// dependency doesn't exist in the registry. No action has run at that point.
type UnknownTargetError struct {
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("target %s not found", e.Name)
}

// CycleError is returned when the dependency relation reachable from the
// requested targets contains a cycle. Names lists the targets on the cycle in
// traversal order; the first name appears again at the end to close the loop.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Names, " -> "))
}
