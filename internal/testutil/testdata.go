package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// LoadFixture reads a file from the testdata directory next to this package.
// If target is provided, the YAML content is also decoded into it.
func LoadFixture(filename string, target ...any) ([]byte, error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)

	data, err := os.ReadFile(filepath.Join(dir, "testdata", filename))
	if err != nil {
		return nil, err
	}

	if len(target) > 0 && target[0] != nil {
		if err := yaml.Unmarshal(data, target[0]); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// MustFixture is LoadFixture failing the test on error.
func MustFixture(t testing.TB, filename string) []byte {
	t.Helper()
	data, err := LoadFixture(filename)
	require.NoError(t, err)
	return data
}
