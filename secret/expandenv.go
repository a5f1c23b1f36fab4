package secret

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingEnv is returned when a referenced environment variable is unset.
var ErrMissingEnv = errors.New("secret: missing required environment variables")

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `$VAR` and `${VAR}` are expanded via os.ExpandEnv.
//   - If `${VAR}` is present but VAR is missing from the environment, it errors.
//   - `$$` emits a literal `$` (escape hatch).
func ExpandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00CALLDISPATCH_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	for _, match := range envVarPattern.FindAllStringSubmatch(s, -1) {
		key := match[1]
		if _, ok := os.LookupEnv(key); !ok {
			missing[key] = struct{}{}
		}
	}
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(keys, ", "))
	}

	s = os.ExpandEnv(s)
	s = strings.ReplaceAll(s, dollarSentinel, "$")
	return s, nil
}

// ExpandOptions returns a copy of opts with every string value, including
// those nested in maps and slices, passed through ExpandEnvStrict.
// The error names the dotted path of the first failing value.
func ExpandOptions(opts map[string]any) (map[string]any, error) {
	if opts == nil {
		return nil, nil
	}
	out, err := expandValue("", opts)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func expandValue(path string, v any) (any, error) {
	switch val := v.(type) {
	case string:
		expanded, err := ExpandEnvStrict(val)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", path, err)
		}
		return expanded, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			child := k
			if path != "" {
				child = path + "." + k
			}
			expanded, err := expandValue(child, item)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := expandValue(fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}
