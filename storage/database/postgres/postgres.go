package pgrepos

import (
	"strings"

	"github.com/lib/pq"

	"github.com/mwalimu/darasa/core"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func pqStringArray(vals []string) pq.StringArray {
	return pq.StringArray(vals)
}

// orderBy renders an ORDER BY clause from the service-level ordering,
// falling back to the given default clause. The API layer only lets
// allow-listed fields through; quoting them here keeps this safe on its
// own, and alias qualifies the columns in joined queries.
func orderBy(ordering []core.DBOrdering, alias, deflt string) string {
	if len(ordering) == 0 {
		if deflt == "" {
			return ""
		}
		return " ORDER BY " + deflt
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		direction := "DESC"
		if ord.Ascending {
			direction = "ASC"
		}
		field := pq.QuoteIdentifier(ord.Field)
		if alias != "" {
			field = alias + "." + field
		}
		clauses = append(clauses, field+" "+direction)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
