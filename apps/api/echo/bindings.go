package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thesispool/thesispool/core"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=due_date,-title`; a leading "-" sorts descending.
// The parameter may be repeated. Unknown fields are dropped later by the service.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	var orderings []core.DBOrdering
	for _, val := range ctx.QueryParams()[orderingParam] {
		for _, field := range strings.Split(val, ",") {
			field = strings.TrimSpace(field)
			ascending := !strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if field == "" {
				continue
			}
			orderings = append(orderings, core.DBOrdering{Field: field, Ascending: ascending})
		}
	}
	return orderings
}
