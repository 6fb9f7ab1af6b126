// Package targets implements a small declarative target graph runner: named
// targets declare dependencies on each other and an optional action, the
// runner figures out a deterministic execution order and runs every required
// action exactly once.
package targets

import (
	"context"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"

	"github.com/shipit-build/shipit/pkg/logctx"
)

// Options controls a single run. The zero value runs the requested targets
// with their full dependency closure.
type Options struct {
	// SkipDeps runs only the requested targets' own actions. The dependency
	// closure is still resolved and validated (unknown targets and cycles stay
	// fatal) but dependency actions are not executed.
	SkipDeps bool
	// Verbose enables debug-level log events for scheduling decisions.
	Verbose bool
}

// RunResult describes the outcome of a run.
type RunResult struct {
	// Executed lists the targets whose action actually ran, in execution
	// order. Aggregation targets without an action never show up here.
	Executed []string
	// Status records the final state of every scheduled target.
	Status map[string]Status
	// Failed names the target that aborted the run, if any.
	Failed string
}

// Run executes the named targets from the given registry in dependency order.
// Every reachable action runs at most once and only after all of its
// dependencies completed. The first failing action aborts the run; completed
// targets are not rolled back.
func Run(ctx context.Context, registry *Registry, names []string, opts Options) (*RunResult, error) {
	if len(names) == 0 {
		return nil, eris.New("no targets requested")
	}

	logger := logctx.FromContext(ctx).With().Str("run", nanoid.New()).Logger()
	ctx = logctx.WithLogger(ctx, &logger)

	order, err := resolve(registry, names)
	if err != nil {
		return nil, err
	}

	if opts.SkipDeps {
		order = dedupe(names)
	}

	if opts.Verbose {
		logger.Debug().Strs("order", order).Msg("resolved execution order")
	}

	result := &RunResult{
		Status: make(map[string]Status, len(order)),
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return result, eris.Wrap(err, "run aborted")
		}

		target, _ := registry.Get(name)
		if target.Action == nil {
			// aggregation target, satisfied once its deps are done
			result.Status[name] = StatusDone
			if opts.Verbose {
				logger.Debug().Str("target", name).Msg("nothing to run")
			}
			continue
		}

		logger.Info().Str("target", name).Msg("starting")
		start := time.Now()

		status, err := target.Action(ctx)
		if err != nil {
			result.Status[name] = StatusFailed
			result.Failed = name
			logger.Error().Str("target", name).Dur("elapsed", time.Since(start)).Msg("failed")
			return result, eris.Wrapf(err, "target %s failed", name)
		}

		result.Executed = append(result.Executed, name)
		if status == StatusSkipped {
			result.Status[name] = StatusSkipped
			logger.Warn().Str("target", name).Msg("skipped")
			continue
		}

		result.Status[name] = StatusDone
		logger.Info().Str("target", name).Dur("elapsed", time.Since(start)).Msg("finished")
	}

	return result, nil
}

const (
	colorWhite = iota // not visited
	colorGrey         // on the current traversal path
	colorBlack        // fully processed
)

// resolve computes the transitive dependency closure of the given names and
// returns it in topological order. Ties are broken by dependency declaration
// order, so the result is deterministic for a fixed registry.
func resolve(registry *Registry, names []string) ([]string, error) {
	colors := make(map[string]int)
	order := make([]string, 0, registry.Len())
	path := make([]string, 0, registry.Len())

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case colorBlack:
			return nil
		case colorGrey:
			// back edge onto the current path, report the offending loop
			start := 0
			for idx, member := range path {
				if member == name {
					start = idx
					break
				}
			}

			cycle := make([]string, 0, len(path)-start+1)
			cycle = append(cycle, path[start:]...)
			cycle = append(cycle, name)
			return &CycleError{Names: cycle}
		}

		target, ok := registry.Get(name)
		if !ok {
			return &UnknownTargetError{Name: name}
		}

		colors[name] = colorGrey
		path = append(path, name)

		for _, dep := range target.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		colors[name] = colorBlack
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))

	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}

	return result
}
