package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidQuery(key, msg string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt returns def when key is absent and rejects values outside
// [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key, "query parameter must be numeric", nil)
	}
	if value < min || value > max {
		return 0, invalidQuery(key, "query parameter out of range", map[string]any{"min": min, "max": max})
	}
	return value, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidQuery(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}

// ParseQueryEnum accepts one of allowed, case-insensitively, or def when the
// key is absent.
func ParseQueryEnum[T ~string](r *http.Request, key string, def T, allowed ...T) (T, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	options := make([]string, 0, len(allowed))
	for _, candidate := range allowed {
		if strings.EqualFold(raw, string(candidate)) {
			return candidate, nil
		}
		options = append(options, string(candidate))
	}
	return def, invalidQuery(key, "query parameter not allowed", map[string]any{"allowed": options})
}
