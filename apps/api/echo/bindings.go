package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mwalimu/darasa/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the `ordering` query param ("-due_date,title"). Fields end
// up interpolated into ORDER BY clauses, so anything outside the
// endpoint's sortable set is rejected.
func (ord *Ordering) Bind(ctx echo.Context, sortable ...string) error {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return nil
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return nil
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !isSortable(field, sortable) {
			return core.NewValidationError(nil, core.FieldError{
				Field: orderingParam, Error: "cannot order by " + field,
			})
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func isSortable(field string, sortable []string) bool {
	for _, s := range sortable {
		if field == s {
			return true
		}
	}
	return false
}
