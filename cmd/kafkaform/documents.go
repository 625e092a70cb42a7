package kafkaform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
)

// readDocuments returns every file under <prefix>/kafka keyed by its
// address path, restricted to those matching subpath. Files that are not
// addresses are skipped.
func readDocuments(conn *connector.Connector, subpath string) (map[string][]byte, error) {
	prefix := conn.Prefix()
	root := filepath.Join(prefix, "kafka")
	docs := map[string][]byte{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(prefix, p)
		if err != nil {
			return err
		}
		path := filepath.ToSlash(rel)
		if conn.Filter(path) == connector.FilterNone || !addr.MatchesFilter(path, subpath) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		docs[path] = data
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// desiredState returns the resource documents to reconcile. With prune set,
// topics present on a cluster but without a document are mapped to nil so
// that they get deleted.
func desiredState(ctx context.Context, conn *connector.Connector, subpath string, prune bool) (map[string][]byte, error) {
	docs, err := readDocuments(conn, subpath)
	if err != nil {
		return nil, err
	}
	desired := map[string][]byte{}
	for path, data := range docs {
		if a, err := addr.Decode(path); err == nil && a.IsResource() {
			desired[path] = data
		}
	}
	if !prune {
		return desired, nil
	}

	remote, err := conn.List(ctx, subpath)
	if err != nil {
		return nil, err
	}
	for _, path := range remote {
		if _, ok := desired[path]; !ok {
			desired[path] = nil
		}
	}
	return desired, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
