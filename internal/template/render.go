// Package template substitutes {{name}} placeholders in request templates.
// Rendering is all-or-nothing: a template referencing any unresolved variable
// fails with the full missing-name list and no partial output.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_:-]+)\}\}`)

// MissingVariablesError reports every unresolved placeholder of one render
// call, sorted and de-duplicated.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing template variables: %s", strings.Join(e.Names, ", "))
}

// Render replaces every {{name}} placeholder in tmpl with its value from vars.
// Substitution is raw: values are not escaped and are never re-expanded.
func Render(tmpl string, vars map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := match[1]
		if _, ok := vars[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingVariablesError{Names: missing}
	}

	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(placeholder string) string {
		name := placeholder[2 : len(placeholder)-2]
		return vars[name]
	}), nil
}

// RenderMap renders every value of m, typically a header map. Keys are left
// untouched.
func RenderMap(m map[string]string, vars map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		rendered, err := Render(v, vars)
		if err != nil {
			return nil, err
		}
		out[k] = rendered
	}
	return out, nil
}

// WithBuiltins copies vars and adds the built-in variables when absent:
// timestamp (UTC yyyyMMddHHmmss), timestampIso (UTC ISO-8601) and guid (a
// fresh random UUID). Caller-supplied values always win.
func WithBuiltins(vars map[string]string, now time.Time) map[string]string {
	merged := make(map[string]string, len(vars)+3)
	for k, v := range vars {
		merged[k] = v
	}
	utc := now.UTC()
	if _, ok := merged["timestamp"]; !ok {
		merged["timestamp"] = utc.Format("20060102150405")
	}
	if _, ok := merged["timestampIso"]; !ok {
		merged["timestampIso"] = utc.Format(time.RFC3339)
	}
	if _, ok := merged["guid"]; !ok {
		merged["guid"] = uuid.NewString()
	}
	return merged
}
