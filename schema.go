package veil

import (
	"reflect"
	"strings"
	"time"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register the tags read by Introspect with sentinel
	sentinel.Tag("db")
	sentinel.Tag("veil")
}

// Schema resolves the persistence datatype of a record type's field.
// Unknown fields resolve to TypeString.
type Schema interface {
	Datatype(recordType, field string) Datatype
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(recordType, field string) Datatype

// Datatype implements Schema.
func (f SchemaFunc) Datatype(recordType, field string) Datatype {
	return f(recordType, field)
}

// SchemaMap is a static schema: record type -> field -> datatype.
type SchemaMap map[string]map[string]Datatype

// Datatype implements Schema.
func (m SchemaMap) Datatype(recordType, field string) Datatype {
	if dt, ok := m[recordType][field]; ok {
		return dt
	}
	return TypeString
}

// Merge copies other's entries into m, overwriting on conflict.
func (m SchemaMap) Merge(other SchemaMap) SchemaMap {
	for rt, fields := range other {
		if m[rt] == nil {
			m[rt] = make(map[string]Datatype, len(fields))
		}
		for f, dt := range fields {
			m[rt][f] = dt
		}
	}
	return m
}

// Introspection is what Introspect learns from a struct type.
type Introspection struct {
	RecordType string
	Fields     []string  // fields tagged veil:"encrypt"
	Schema     SchemaMap // datatypes of every exported field
}

// Settings returns Settings managing the introspected fields.
func (in Introspection) Settings() Settings {
	return Settings{Fields: append([]string(nil), in.Fields...)}
}

var timeType = reflect.TypeOf(time.Time{})

// Introspect derives a record type's schema and managed fields from struct tags.
//
//	type User struct {
//	    ID    int64  `db:"id" veil:"primary_key"`
//	    Email string `db:"email" veil:"encrypt"`
//	    Photo []byte `db:"photo" veil:"encrypt"`
//	}
//
// Column names come from the db tag, falling back to the Go field name.
// Datatypes follow the Go type unless a veil tag option names one.
func Introspect[T any]() Introspection {
	spec := sentinel.Scan[T]()
	in := Introspection{
		RecordType: spec.TypeName,
		Schema:     SchemaMap{spec.TypeName: make(map[string]Datatype, len(spec.Fields))},
	}

	for _, field := range spec.Fields {
		name := field.Name
		if col, ok := field.Tags["db"]; ok {
			col, _, _ = strings.Cut(col, ",")
			if col == "-" {
				continue
			}
			if col != "" {
				name = col
			}
		}

		dt := datatypeOf(field.ReflectType)
		encrypt := false
		for _, opt := range strings.Split(field.Tags["veil"], ",") {
			switch opt = strings.TrimSpace(opt); {
			case opt == "encrypt":
				encrypt = true
			case isDatatype(Datatype(opt)):
				dt = Datatype(opt)
			}
		}

		in.Schema[spec.TypeName][name] = dt
		if encrypt {
			in.Fields = append(in.Fields, name)
		}
	}

	return in
}

// datatypeOf maps a Go type to the datatype a SQL layer would give its column.
func datatypeOf(rt reflect.Type) Datatype {
	if rt == nil {
		return TypeString
	}
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == timeType {
		return TypeDatetime
	}
	switch rt.Kind() {
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return TypeBinary
		}
	}
	return TypeString
}

func isDatatype(dt Datatype) bool {
	switch dt {
	case TypeString, TypeText, TypeBinary, TypeBoolean, TypeInteger, TypeFloat,
		TypeDatetime, TypeTimestamp, TypeTime, TypeDate, TypePrimaryKey:
		return true
	}
	return false
}
