package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

/*
 * Variable substitution.
 *
 * Replaces {{dot.path}} placeholders with values resolved from the execution
 * context. An unresolved path leaves the placeholder verbatim in the output;
 * the visible failure mode is much easier to debug in a sent email than a
 * silently blanked field.
 */

// Context is the data bag available to conditions and templating for one
// invocation: trigger id, new/old record, organization id.
type Context map[string]any

var placeholderRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces every {{path}} occurrence in template with the value
// found by walking ctx. Unresolved paths pass through unchanged.
func Interpolate(template string, ctx Context) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := lookupPath(ctx, path)
		if !ok {
			return match
		}
		return stringify(v)
	})
}

// InterpolateObject applies Interpolate to every string value in a nested
// mapping, recursing through maps and slices. Used to templatize webhook
// payloads and record updates. Non-string leaves are copied as-is.
func InterpolateObject(obj map[string]any, ctx Context) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = interpolateValue(v, ctx)
	}
	return out
}

func interpolateValue(v any, ctx Context) any {
	switch val := v.(type) {
	case string:
		return Interpolate(val, ctx)
	case map[string]any:
		return InterpolateObject(val, ctx)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = interpolateValue(elem, ctx)
		}
		return out
	default:
		return v
	}
}

// lookupPath walks a dot-separated path through nested maps.
// Returns the value and whether the full path resolved.
func lookupPath(ctx Context, path string) (any, bool) {
	var current any = map[string]any(ctx)
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringify renders a context value for substitution and the substring
// operators. Composite values render as JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
