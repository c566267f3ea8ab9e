package persistence

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderSpec whitelists the columns a list endpoint may sort on. Unknown keys
// fall back to the default column; anything but "asc" sorts descending.
type orderSpec struct {
	columns  map[string]string
	fallback string
}

var mappingOrder = orderSpec{
	columns: map[string]string{
		"created_at":     "created_at",
		"updated_at":     "updated_at",
		"external_sku":   "external_sku",
		"incoming_qty":   "incoming_qty",
		"last_synced_at": "last_synced_at",
	},
	fallback: "created_at",
}

func (o orderSpec) column(key string) string {
	if col, ok := o.columns[strings.TrimSpace(key)]; ok {
		return col
	}
	return o.fallback
}

// apply orders by the requested column, then by id so pages stay stable
// when the column has ties
func (o orderSpec) apply(db *gorm.DB, key, dir string) *gorm.DB {
	desc := !strings.EqualFold(strings.TrimSpace(dir), "asc")
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: o.column(key)}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-folded LIKE pattern matching s anywhere
func containsPattern(s string) string {
	return "%" + strings.ToLower(likeEscaper.Replace(s)) + "%"
}
