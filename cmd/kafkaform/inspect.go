package kafkaform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/spf13/cobra"
)

var (
	errNotFound = errors.New("resource not found")
	errInvalid  = errors.New("documents have errors")
)

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ADDRESS",
		Short: "Print the current state of a resource as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			got, err := conn.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if got == nil {
				return fmt.Errorf("%w: %s", errNotFound, args[0])
			}
			_, err = cmd.OutOrStdout().Write(got.ResourceDefinition)
			return err
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [SUBPATH]",
		Short: "List the addresses of resources present on the clusters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			paths, err := conn.List(cmd.Context(), subpathArg(args))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [SUBPATH]",
		Short: "Check every document under the prefix without contacting a cluster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn := a.offline()
			docs, err := readDocuments(conn, subpathArg(args))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var errCount int
			for _, path := range sortedKeys(docs) {
				resp, err := conn.Diag(path, docs[path])
				if err != nil {
					return err
				}
				for _, d := range resp.Diagnostics {
					if d.Severity == connector.SeverityError {
						errCount++
					}
					fmt.Fprintf(out, "%s:%d:%d: %s: %s\n", path, d.Line, d.Col, d.Severity, d.Message)
				}
			}
			if errCount > 0 {
				return fmt.Errorf("%w: %d error(s) in %d document(s)", errInvalid, errCount, len(docs))
			}
			fmt.Fprintf(out, "%d document(s) valid.\n", len(docs))
			return nil
		},
	}
}

func (a *app) skeletonCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "skeleton [config|topics|acls|quotas]",
		Short: "Print template documents",
		Long: `Print template documents for each address shape. Placeholders in brackets
are meant to be replaced. With --write the templates are written under the
prefix; existing files are left alone.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"config", "topics", "acls", "quotas"},
		RunE: func(cmd *cobra.Command, args []string) error {
			conn := a.offline()
			skeletons, err := conn.Skeletons()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range skeletons {
				if len(args) == 1 && !strings.Contains(s.Path, args[0]) {
					continue
				}
				if write {
					dest := filepath.Join(conn.Prefix(), filepath.FromSlash(s.Path))
					written, err := writeNew(dest, s.Body)
					if err != nil {
						return err
					}
					if written {
						fmt.Fprintf(out, "wrote %s\n", dest)
					} else {
						fmt.Fprintf(out, "kept %s\n", dest)
					}
					continue
				}
				fmt.Fprintf(out, "# %s\n%s---\n", s.Path, s.Body)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write templates under the prefix")
	return cmd
}

// writeNew creates path with data unless it already exists.
func writeNew(path string, data []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}
