package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-obe/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryID reads the first positive integer among the named query params.
// Missing params give 0; malformed ones a field error.
func queryID(ctx echo.Context, names ...string) (int, error) {
	for _, name := range names {
		val := ctx.QueryParam(name)
		if val == "" {
			continue
		}
		id, err := strconv.Atoi(val)
		if err != nil || id <= 0 {
			return 0, core.NewFieldError(name, "a valid integer is required")
		}
		return id, nil
	}
	return 0, nil
}

// requiredQueryID is queryID for filters a list cannot do without.
func requiredQueryID(ctx echo.Context, names ...string) (int, error) {
	id, err := queryID(ctx, names...)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, core.NewFieldError(names[0], "this query parameter is required")
	}
	return id, nil
}

// pathID reads the :id path param; anything but a positive integer is a 404.
func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be a valid boolean")
	}
	return &b, nil
}
