package audit

import (
	"fmt"
	"strings"

	"github.com/roach88/ecomgen/internal/model"
)

// checkKeys verifies every primary key and unique column set, then every
// foreign key declared in the table schemas.
func checkKeys(r *Report, tables []model.Table) {
	byName := make(map[string]model.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	for _, t := range tables {
		checkUnique(r, t, t.Key, "primary_key")
		for _, cols := range t.Unique {
			checkUnique(r, t, cols, "unique")
		}
	}

	for _, t := range tables {
		for i, col := range t.Columns {
			if col.References == "" {
				continue
			}
			checkReference(r, t, i, col, byName)
		}
	}
}

func checkUnique(r *Report, t model.Table, cols []string, kind string) {
	name := fmt.Sprintf("%s/%s(%s)", kind, t.Name, strings.Join(cols, ","))
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.Index(c)
		if idx[i] < 0 {
			r.fail(name, "unknown column %q", c)
			return
		}
	}

	seen := make(map[string]int, len(t.Rows))
	var v violations
	for n, row := range t.Rows {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = row[j]
		}
		key := strings.Join(parts, "\x1f")
		if first, dup := seen[key]; dup {
			v.add("%s duplicated in rows %d and %d", strings.Join(parts, ","), first, n)
			continue
		}
		seen[key] = n
	}
	v.report(r, name, fmt.Sprintf("%d distinct keys", len(seen)))
}

func checkReference(r *Report, t model.Table, col int, c model.Column, byName map[string]model.Table) {
	name := fmt.Sprintf("foreign_key/%s.%s", t.Name, c.Name)
	target, column, ok := strings.Cut(c.References, ".")
	parent, found := byName[target]
	if !ok || !found || parent.Index(column) < 0 {
		r.fail(name, "unresolvable reference %q", c.References)
		return
	}

	pcol := parent.Index(column)
	keys := make(map[string]struct{}, len(parent.Rows))
	for _, row := range parent.Rows {
		keys[row[pcol]] = struct{}{}
	}

	var v violations
	for _, row := range t.Rows {
		val := row[col]
		if val == "" && c.Nullable {
			continue
		}
		if _, ok := keys[val]; !ok {
			v.add("%q not in %s", val, c.References)
		}
	}
	v.report(r, name, fmt.Sprintf("%d rows reference %s", len(t.Rows), c.References))
}
