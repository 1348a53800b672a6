package dss

// Table is a constituent table. Column order follows the order in which
// fields first appear across rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

func newTable(cs []Constituent) *Table {
	t := &Table{}
	index := map[string]int{}
	for _, c := range cs {
		for _, f := range c.Fields {
			if _, ok := index[f.Name]; !ok {
				index[f.Name] = len(t.Columns)
				t.Columns = append(t.Columns, f.Name)
			}
		}
	}
	for _, c := range cs {
		row := make([]string, len(t.Columns))
		for _, f := range c.Fields {
			row[index[f.Name]] = f.Value
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Select returns a table with only the named columns, in the given order.
// A column the table does not have comes back empty. With no names, t is
// returned unchanged.
func (t *Table) Select(columns ...string) *Table {
	if len(columns) == 0 {
		return t
	}
	index := make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		index[name] = i
	}
	out := &Table{Columns: append([]string(nil), columns...)}
	for _, row := range t.Rows {
		picked := make([]string, len(columns))
		for i, name := range columns {
			if j, ok := index[name]; ok {
				picked[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, picked)
	}
	return out
}
