package util

import "os"

// EnvOr returns the value of the first non-empty variable among keys, or def
// when none is set.
func EnvOr(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
