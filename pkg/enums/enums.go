// Package enums holds the string enums persisted in Postgres and exchanged
// over the API. Values are lowercase and stable; renaming one needs a migration.
package enums

import (
	"fmt"
	"slices"
)

func oneOf[T ~string](v T, all []T) bool {
	return slices.Contains(all, v)
}

func parse[T ~string](kind, raw string, all []T) (T, error) {
	if v := T(raw); oneOf(v, all) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
