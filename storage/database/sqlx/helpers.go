package sqlxrepos

import (
	"strings"

	"github.com/lib/pq"

	"github.com/lojf/nextgen/core"
)

// orderBy renders an ORDER BY clause; empty when no ordering is given.
func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
