package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// TimeLayout is used for timestamp cells.
const TimeLayout = "2006-01-02 15:04:05"

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format renders a *Table, a slice of structs, a struct or a map.
// Anything else is written with fmt's default formatting.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	switch t := data.(type) {
	case *Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return t.RenderWithOptions(w, f.NoHeaders)
	}

	table, ok := toTable(reflect.ValueOf(data), f.Wide)
	if !ok {
		_, err := fmt.Fprintln(w, data)
		return err
	}
	return table.RenderWithOptions(w, f.NoHeaders)
}

type column struct {
	index  int
	header string
	name   string
	time   bool
}

func toTable(v reflect.Value, wide bool) (*Table, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return &Table{}, true
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			t := &Table{Headers: []string{"VALUE"}}
			for i := 0; i < v.Len(); i++ {
				t.AddRow(formatValue(v.Index(i)))
			}
			return t, true
		}
		cols := columns(elem, wide)
		t := &Table{}
		for _, c := range cols {
			t.Headers = append(t.Headers, c.header)
		}
		for i := 0; i < v.Len(); i++ {
			row := indirect(v.Index(i))
			cells := make([]string, len(cols))
			for j, c := range cols {
				if row.IsValid() {
					cells[j] = formatCell(row.Field(c.index), c.time)
				}
			}
			t.Rows = append(t.Rows, cells)
		}
		return t, true

	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		for _, c := range columns(v.Type(), true) {
			t.AddRow(c.name, formatCell(v.Field(c.index), c.time))
		}
		return t, true

	case reflect.Map:
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		iter := v.MapRange()
		for iter.Next() {
			t.AddRow(formatValue(iter.Key()), formatValue(iter.Value()))
		}
		sort.Slice(t.Rows, func(i, j int) bool { return t.Rows[i][0] < t.Rows[j][0] })
		return t, true
	}
	return nil, false
}

// columns lists the visible fields of struct type t.
func columns(t reflect.Type, wide bool) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" {
			continue
		}
		opts := strings.Split(tag, ",")
		if hasOpt(opts, "wide") && !wide {
			continue
		}
		name := field.Name
		if jsonName, _, _ := strings.Cut(field.Tag.Get("json"), ","); jsonName != "" && jsonName != "-" {
			name = jsonName
		}
		cols = append(cols, column{
			index:  i,
			header: strings.ToUpper(toSnakeCase(name)),
			name:   name,
			time:   hasOpt(opts, "time"),
		})
	}
	return cols
}

func hasOpt(opts []string, want string) bool {
	for _, o := range opts {
		if strings.TrimSpace(o) == want {
			return true
		}
	}
	return false
}

func formatCell(v reflect.Value, unixMillis bool) string {
	if unixMillis {
		v = indirect(v)
		if v.IsValid() && v.CanInt() {
			if ms := v.Int(); ms > 0 {
				return time.UnixMilli(ms).Local().Format(TimeLayout)
			}
			return "-"
		}
	}
	return formatValue(v)
}

// formatValue formats a single cell.
func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return "-"
	}

	if t, ok := v.Interface().(time.Time); ok {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format(TimeLayout)
	}
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%g", v.Float())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		if v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// indirect follows pointers and interfaces. A nil yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// toSnakeCase converts CamelCase to Camel_Case. Names that already
// contain underscores are returned unchanged.
func toSnakeCase(s string) string {
	if strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table with headers.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without the header row.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
