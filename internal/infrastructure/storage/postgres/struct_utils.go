package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns extracts all column names from struct "db" tags, including
// those of embedded capability structs (entity.Audit, entity.SoftDelete, ...).
//
// Usage:
//
//	columns := ExtractDBColumns[posts.Post]()
//	// ["id", "version", "created", "created_by", ..., "is_deleted", "title", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

// ColumnsOf returns the db columns of v's type.
func ColumnsOf(v any) []string {
	return columnsOf(reflect.TypeOf(v))
}

func columnsOf(t reflect.Type) []string {
	meta := metadataFor(t)
	cols := make([]string, 0, len(meta.fields))
	for _, f := range meta.fields {
		cols = append(cols, f.column)
	}
	return cols
}

// fieldInfo is a flattened db-tagged field; index is the path through embedded structs.
type fieldInfo struct {
	index  []int
	column string
}

type typeMetadata struct {
	fields []fieldInfo
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

// metadataFor returns cached field metadata, computing it on first use.
// First occurrence of a column wins, so outer fields shadow embedded ones.
func metadataFor(t reflect.Type) *typeMetadata {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return &typeMetadata{}
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		seen := make(map[string]bool)
		collectFields(t, nil, seen, meta)
	}
	actual, _ := typeCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata)
}

func collectFields(t reflect.Type, prefix []int, seen map[string]bool, meta *typeMetadata) {
	var embedded []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			embedded = append(embedded, field)
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || seen[tag] {
			continue
		}
		seen[tag] = true
		idx := append(append([]int(nil), prefix...), i)
		meta.fields = append(meta.fields, fieldInfo{index: idx, column: tag})
	}
	for _, field := range embedded {
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			// pointer embeds are not flattened
			continue
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		collectFields(ft, append(append([]int(nil), prefix...), field.Index...), seen, meta)
	}
}

// StructToMap converts a struct (or pointer to one) to column->value using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.fields {
		res[f.column] = rv.FieldByIndex(f.index).Interface()
	}
	return res
}
