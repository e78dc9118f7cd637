package paging

import "strings"

// FilterType selects the input a data table renders in a column's filter cell.
type FilterType string

const (
	FilterNone        FilterType = ""
	FilterText        FilterType = "text"
	FilterNumber      FilterType = "number"
	FilterDate        FilterType = "date"
	FilterSelect      FilterType = "select"
	FilterMultiSelect FilterType = "multi-select"
)

// Option is one choice of a select or multi-select filter.
type Option struct {
	Label string
	Value string
}

// Column describes one data table column.
type Column struct {
	Key         string
	Label       string
	Sortable    bool
	Filter      FilterType
	Options     []Option
	Placeholder string
}

// FilterPlaceholder is the hint shown in an empty filter input.
func (c Column) FilterPlaceholder() string {
	if c.Placeholder != "" {
		return c.Placeholder
	}
	name := c.Label
	if name == "" {
		name = c.Key
	}
	return "Search " + strings.ToLower(name)
}

// Schema is the column configuration of a table.
type Schema struct {
	Columns          []Column
	DefaultSort      string
	DefaultDirection Direction
}

// Column looks up a column by key.
func (s Schema) Column(key string) (Column, bool) {
	if key == "" {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// WithOptions returns a copy of s in which column key offers opts.
func (s Schema) WithOptions(key string, opts []Option) Schema {
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	for i := range cols {
		if cols[i].Key == key {
			cols[i].Options = opts
		}
	}
	s.Columns = cols
	return s
}

func (s Schema) defaultDirection() Direction {
	if s.DefaultDirection == "" {
		return Asc
	}
	return s.DefaultDirection
}
