package connector

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ApplyResult is the outcome for one address of a batch. Err is set when
// fetching, planning or one of the ops failed; ops after the failing one
// are not executed.
type ApplyResult struct {
	Path     string
	Steps    []PlanStep
	Messages []string
	Err      error
}

// Apply reconciles every address in desired with the cluster. A nil body
// requests deletion. With dryRun set only the plans are computed. Addresses
// are processed independently: one failing never stops the others. Results
// are sorted by path.
func (c *Connector) Apply(ctx context.Context, desired map[string][]byte, dryRun bool) []ApplyResult {
	paths := make([]string, 0, len(desired))
	for p := range desired {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	limit := 1
	if cfg := c.Config(); cfg != nil {
		limit = cfg.ConcurrentRequests
	}

	results := make([]ApplyResult, len(paths))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = c.applyOne(ctx, path, desired[path], dryRun)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Connector) applyOne(ctx context.Context, path string, desired []byte, dryRun bool) ApplyResult {
	res := ApplyResult{Path: path}

	var current []byte
	if c.Filter(path) == FilterResource {
		got, err := c.Get(ctx, path)
		if err != nil {
			res.Err = err
			return res
		}
		if got != nil {
			current = got.ResourceDefinition
		}
	}

	res.Steps, res.Err = c.Plan(ctx, path, current, desired)
	if res.Err != nil || dryRun {
		return res
	}

	for _, step := range res.Steps {
		out, err := c.OpExec(ctx, path, step.Op)
		if err != nil {
			c.logger.Error("apply stopped", zap.String("address", path), zap.Error(err))
			res.Err = err
			return res
		}
		res.Messages = append(res.Messages, out.FriendlyMessage)
	}
	return res
}
