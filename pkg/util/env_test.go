package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("KAFKAFORM_TEST_PRIMARY", "")
	t.Setenv("KAFKAFORM_TEST_FALLBACK", "fallback")

	testCases := []struct {
		name string
		keys []string
		want string
	}{
		{"no keys", nil, "def"},
		{"unset", []string{"KAFKAFORM_TEST_UNSET"}, "def"},
		{"empty is unset", []string{"KAFKAFORM_TEST_PRIMARY"}, "def"},
		{"first set wins", []string{"KAFKAFORM_TEST_PRIMARY", "KAFKAFORM_TEST_FALLBACK"}, "fallback"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EnvOr("def", tc.keys...))
		})
	}
}
