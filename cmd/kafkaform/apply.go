package kafkaform

import (
	"errors"
	"fmt"
	"io"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/spf13/cobra"
)

var errApplyFailed = errors.New("one or more addresses failed")

func (a *app) planCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "plan [SUBPATH]",
		Short: "Show the operations needed to reach the documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, subpathArg(args), prune, true)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "also plan deletion of topics that have no document")
	return cmd
}

func (a *app) applyCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "apply [SUBPATH]",
		Short: "Reconcile clusters with the documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, subpathArg(args), prune, false)
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete topics that have no document")
	return cmd
}

func subpathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (a *app) reconcile(cmd *cobra.Command, subpath string, prune, dryRun bool) error {
	ctx := cmd.Context()
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	desired, err := desiredState(ctx, conn, subpath, prune)
	if err != nil {
		return err
	}

	results := conn.Apply(ctx, desired, dryRun)
	if printResults(cmd.OutOrStdout(), results, dryRun) {
		return errApplyFailed
	}
	return nil
}

// printResults writes one block per address that has changes or failed and
// reports whether any failed.
func printResults(w io.Writer, results []connector.ApplyResult, dryRun bool) bool {
	var failed, changed int
	for _, r := range results {
		if r.Err == nil && len(r.Steps) == 0 {
			continue
		}
		changed++
		fmt.Fprintf(w, "%s\n", r.Path)
		if dryRun {
			for _, s := range r.Steps {
				fmt.Fprintf(w, "  + %s\n", s.FriendlyMessage)
			}
		} else {
			for _, m := range r.Messages {
				fmt.Fprintf(w, "  ✓ %s\n", m)
			}
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "  ✗ %v\n", r.Err)
		}
	}

	switch {
	case changed == 0:
		fmt.Fprintln(w, "No changes. Clusters match the documents.")
	case dryRun:
		fmt.Fprintf(w, "\n%d of %d addresses would change.\n", changed-failed, len(results))
	default:
		fmt.Fprintf(w, "\n%d of %d addresses changed.\n", changed-failed, len(results))
	}
	if failed > 0 {
		fmt.Fprintf(w, "%d failed.\n", failed)
	}
	return failed > 0
}
