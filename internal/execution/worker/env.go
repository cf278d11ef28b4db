package worker

import (
	"sort"
	"strings"
)

// BuildEnv layers overlay onto inherited, which is in os.Environ form.
// Keys present in overlay replace inherited ones. Overlay keys are
// appended in sorted order so the result is deterministic.
func BuildEnv(inherited []string, overlay map[string]string) []string {
	env := make([]string, 0, len(inherited)+len(overlay))

	for _, kv := range inherited {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[key]; ok {
			continue
		}

		env = append(env, kv)
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+overlay[k])
	}

	return env
}
