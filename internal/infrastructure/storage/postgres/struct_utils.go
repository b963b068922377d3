package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns returns the column names declared by "db" tags of T, in field order.
// Embedded structs are flattened.
//
//	cols := ExtractDBColumns[commission.Entry]()
//	// ["id", "order_id", "user_id", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	cols := make([]string, len(meta))
	for i, f := range meta {
		cols[i] = f.column
	}
	return cols
}

// StructToMap converts a struct to column/value pairs using "db" tags.
// Fields without a tag or tagged "-" are skipped.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta))
	for _, f := range meta {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}

// SelectMap is StructToMap restricted to cols.
func SelectMap(v any, cols []string) map[string]any {
	all := StructToMap(v)
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		if val, ok := all[c]; ok {
			res[c] = val
		}
	}
	return res
}

type columnField struct {
	index  []int
	column string
}

var typeCache sync.Map // reflect.Type -> []columnField

func metadataFor(t reflect.Type) []columnField {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.([]columnField)
	}
	var fields []columnField
	if t.Kind() == reflect.Struct {
		fields = collectFields(t, nil)
	}
	typeCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int) []columnField {
	var out []columnField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			out = append(out, collectFields(field.Type, index)...)
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		out = append(out, columnField{index: index, column: tag})
	}
	return out
}
