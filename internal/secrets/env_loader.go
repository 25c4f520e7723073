package secrets

import (
	"fmt"
	"os"
	"strings"
)

// fileSuffix marks a variable holding the path of a file with the secret,
// as mounted by Docker and Kubernetes secrets.
const fileSuffix = "_FILE"

// EnvLoader returns a Loader reading each key from the environment. When
// KEY is unset, KEY_FILE names a file whose trimmed content is the value.
// Keys set by neither are left out of the result.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
				continue
			}
			path := os.Getenv(k + fileSuffix)
			if path == "" {
				continue
			}
			data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
			if err != nil {
				return nil, fmt.Errorf("read %s%s: %w", k, fileSuffix, err)
			}
			if v := strings.TrimSpace(string(data)); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}
