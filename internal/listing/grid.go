// Package listing implements the search, sort, pagination and CSV export
// shared by the console's data grids.
package listing

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/odyssey-erp/po-console/internal/shared"
)

// Column describes one grid column over rows of type T.
type Column[T any] struct {
	Key    string
	Header string
	Value  func(T) string
	// Search includes the column in free text search.
	Search bool
	// Less overrides the textual ordering, e.g. for amounts and dates.
	Less func(a, b T) bool
}

// Grid is the column set of one entity listing.
type Grid[T any] struct {
	Entity      string
	Columns     []Column[T]
	DefaultSort string
}

// Query is the grid state requested by the browser.
type Query struct {
	Search  string
	Sort    string
	Desc    bool
	Page    int
	PerPage int
}

// ParseQuery reads q, sort (a leading "-" sorts descending), dir, page and
// perPage from the request.
func ParseQuery(r *http.Request) Query {
	values := r.URL.Query()
	q := Query{Search: strings.TrimSpace(values.Get("q"))}
	q.Sort = strings.TrimSpace(values.Get("sort"))
	if strings.HasPrefix(q.Sort, "-") {
		q.Sort = strings.TrimPrefix(q.Sort, "-")
		q.Desc = true
	}
	if strings.EqualFold(values.Get("dir"), "desc") {
		q.Desc = true
	}
	q.Page, _ = strconv.Atoi(values.Get("page"))
	q.PerPage, _ = strconv.Atoi(values.Get("perPage"))
	if q.PerPage > 200 {
		q.PerPage = 200
	}
	return q
}

// ColumnInfo is the public description of a column.
type ColumnInfo struct {
	Key    string `json:"key"`
	Header string `json:"header"`
}

// Page is one rendered grid page.
type Page[T any] struct {
	Columns    []ColumnInfo      `json:"columns"`
	Items      []T               `json:"items"`
	Rows       [][]string        `json:"rows"`
	Sort       string            `json:"sort"`
	Desc       bool              `json:"desc"`
	Pagination shared.Pagination `json:"pagination"`
}

// Filter keeps rows where any searchable column contains search,
// ignoring case. Blank search keeps everything.
func (g Grid[T]) Filter(rows []T, search string) []T {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		for _, col := range g.Columns {
			if col.Search && strings.Contains(strings.ToLower(col.Value(row)), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func (g Grid[T]) column(key string) (Column[T], bool) {
	for _, col := range g.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return Column[T]{}, false
}

// Sort orders rows in place by a whitelisted column and returns the key
// actually used. Unknown keys fall back to DefaultSort.
func (g Grid[T]) Sort(rows []T, key string, desc bool) string {
	col, ok := g.column(key)
	if !ok {
		key = g.DefaultSort
		col, ok = g.column(key)
		if !ok {
			return ""
		}
	}
	less := col.Less
	if less == nil {
		less = func(a, b T) bool {
			return strings.ToLower(col.Value(a)) < strings.ToLower(col.Value(b))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
	return key
}

// Apply runs search, sort and pagination in that order.
func (g Grid[T]) Apply(rows []T, q Query) Page[T] {
	filtered := append([]T(nil), g.Filter(rows, q.Search)...)
	used := g.Sort(filtered, q.Sort, q.Desc)
	pagination := shared.NewPagination(q.Page, q.PerPage, len(filtered))
	start, end := pagination.Bounds()
	items := filtered[start:end]
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Columns:    g.Infos(),
		Items:      items,
		Rows:       g.Cells(items),
		Sort:       used,
		Desc:       q.Desc && used != "",
		Pagination: pagination,
	}
}

// Infos lists the column keys and headers.
func (g Grid[T]) Infos() []ColumnInfo {
	out := make([]ColumnInfo, len(g.Columns))
	for i, col := range g.Columns {
		out[i] = ColumnInfo{Key: col.Key, Header: col.Header}
	}
	return out
}

// Cells renders the display values of rows.
func (g Grid[T]) Cells(rows []T) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(g.Columns))
		for j, col := range g.Columns {
			cells[j] = col.Value(row)
		}
		out[i] = cells
	}
	return out
}
