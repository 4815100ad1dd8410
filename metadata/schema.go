package metadata

import (
	"fmt"
	"slices"
	"strings"
)

// Column describes one column as a SQL dialect reports it.
type Column struct {
	Type     string
	Nullable bool
}

// Schema maps column names to their expected shape.
type Schema map[string]Column

// CheckColumns compares the columns found in table against want. Type names
// compare case-insensitively; extra columns are allowed.
func (want Schema) CheckColumns(table string, got map[string]Column) error {
	var missing, mismatched []string

	for name, w := range want {
		g, ok := got[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !strings.EqualFold(g.Type, w.Type) {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected %s, got %s", name, w.Type, strings.ToLower(g.Type)))
		}
		if g.Nullable != w.Nullable {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, w.Nullable, g.Nullable))
		}
	}

	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}

	slices.Sort(missing)
	slices.Sort(mismatched)

	var b strings.Builder
	fmt.Fprintf(&b, "table %s schema validation failed", table)
	if len(missing) > 0 {
		fmt.Fprintf(&b, "; missing columns: %s", strings.Join(missing, ", "))
	}
	if len(mismatched) > 0 {
		fmt.Fprintf(&b, "; mismatched columns: %s", strings.Join(mismatched, "; "))
	}
	return fmt.Errorf("%s", b.String())
}
