// Package datatable implements the server side processing contract of the
// DataTables grid: column filters, a global search, multi-column ordering and
// paging over an in-memory row set.
package datatable

// Search is a search term, optionally interpreted as a regular expression.
type Search struct {
	Value string `json:"value"`
	Regex bool   `json:"regex"`
}

// Column describes one grid column as sent by the client.
type Column struct {
	Data       string `json:"data"`
	Name       string `json:"name"`
	Searchable bool   `json:"searchable"`
	Orderable  bool   `json:"orderable"`
	Search     Search `json:"search"`
}

// Order selects a column by position and a direction (asc or desc).
type Order struct {
	Column int    `json:"column"`
	Dir    string `json:"dir"`
}

// Request is a single grid draw request.
type Request struct {
	Draw    int      `json:"draw"`
	Columns []Column `json:"columns"`
	Order   []Order  `json:"order"`
	Start   int      `json:"start"`
	Length  int      `json:"length"`
	Search  Search   `json:"search"`
}

// Response is the envelope the grid expects back.
type Response[T any] struct {
	Draw            int `json:"draw"`
	RecordsTotal    int `json:"recordsTotal"`
	RecordsFiltered int `json:"recordsFiltered"`
	Data            []T `json:"data"`
}
