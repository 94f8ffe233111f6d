// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identity coerces the many shapes a project identifier takes on the
// wire (numbers, numeric strings, nested object references) into a single
// types.ProjectID. Every id entering the engine passes through Normalize;
// nothing downstream compares raw identifiers.
package identity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/applytrack/pkg/types"
)

// ProjectIDer is implemented by values that carry their own project reference.
type ProjectIDer interface {
	ProjectRef() any
}

// objectKeys lists the keys checked on object-shaped identifiers, in order.
// "project" holds a nested object whose own id is normalized recursively.
var objectKeys = []string{"projectId", "project_id", "project", "id"}

// maxDepth bounds recursion through nested object references.
const maxDepth = 4

// Normalize returns the canonical ProjectID for v. It reports false for
// anything that is not a positive, finite integer after coercion; callers
// drop such values.
func Normalize(v any) (types.ProjectID, bool) {
	return normalize(v, 0)
}

func normalize(v any, depth int) (types.ProjectID, bool) {
	if depth > maxDepth {
		return 0, false
	}
	switch x := v.(type) {
	case nil:
		return 0, false
	case types.ProjectID:
		return checked(int64(x))
	case int:
		return checked(int64(x))
	case int8:
		return checked(int64(x))
	case int16:
		return checked(int64(x))
	case int32:
		return checked(int64(x))
	case int64:
		return checked(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return checked(int64(x))
	case uint16:
		return checked(int64(x))
	case uint32:
		return checked(int64(x))
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		return fromString(string(x))
	case string:
		return fromString(x)
	case gjson.Result:
		return fromGJSON(x, depth)
	case map[string]any:
		for _, key := range objectKeys {
			if inner, ok := x[key]; ok && inner != nil {
				return normalize(inner, depth+1)
			}
		}
		return 0, false
	case ProjectIDer:
		return normalize(x.ProjectRef(), depth+1)
	default:
		return 0, false
	}
}

// Collect normalizes every value, drops rejects, and removes duplicates
// while keeping first-seen order.
func Collect(values ...any) []types.ProjectID {
	seen := make(map[types.ProjectID]struct{}, len(values))
	ids := make([]types.ProjectID, 0, len(values))
	for _, v := range values {
		id, ok := Normalize(v)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func checked(n int64) (types.ProjectID, bool) {
	id := types.ProjectID(n)
	if !id.Valid() {
		return 0, false
	}
	return id, true
}

func fromUint(n uint64) (types.ProjectID, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return checked(int64(n))
}

func fromFloat(f float64) (types.ProjectID, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return checked(int64(f))
}

func fromString(s string) (types.ProjectID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return checked(n)
	}
	// "42.0" is accepted, "42.5", "1e400" and "0x2Ap0" are not.
	if !decimal(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return fromFloat(f)
}

// decimal reports whether s uses only the characters of a base-10 number.
func decimal(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '+', c == '-', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

func fromGJSON(r gjson.Result, depth int) (types.ProjectID, bool) {
	switch r.Type {
	case gjson.Number:
		// Raw keeps integers beyond float64 precision intact.
		return fromString(r.Raw)
	case gjson.String:
		return fromString(r.Str)
	case gjson.JSON:
		if !r.IsObject() {
			return 0, false
		}
		for _, key := range objectKeys {
			if inner := r.Get(key); inner.Exists() && inner.Type != gjson.Null {
				return normalize(inner, depth+1)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}
