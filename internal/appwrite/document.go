package appwrite

import (
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Document is one row of a collection. The platform returns system fields
// prefixed with '$' alongside the free-form collection attributes; the
// attributes land in Fields since their shape differs per collection.
type Document struct {
	ID         string
	Collection string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Fields     map[string]any
}

// String returns the named field as a string, or "" when absent or not a
// string.
func (d *Document) String(name string) string {
	s, _ := d.Fields[name].(string)
	return s
}

// Int64 returns the named field as an int64, accepting the integer and float
// encodings the platform may emit.
func (d *Document) Int64(name string) int64 {
	switch v := d.Fields[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Float64 returns the named field as a float64.
func (d *Document) Float64(name string) float64 {
	switch v := d.Fields[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// DocumentList is a page of documents plus the collection-wide total for the
// applied filters.
type DocumentList struct {
	Total     int64
	Documents []Document
}

func decodeDocument(d *jx.Decoder) (Document, error) {
	doc := Document{Fields: make(map[string]any)}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "$id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			doc.ID = s
		case "$collectionId":
			s, err := d.Str()
			if err != nil {
				return err
			}
			doc.Collection = s
		case "$createdAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			doc.CreatedAt, _ = time.Parse(time.RFC3339, s)
		case "$updatedAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			doc.UpdatedAt, _ = time.Parse(time.RFC3339, s)
		case "$permissions", "$databaseId", "$sequence", "$tableId":
			return d.Skip()
		default:
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			doc.Fields[string(key)] = v
		}
		return nil
	})
	if err != nil {
		return doc, errors.Wrap(err, "decode document")
	}
	return doc, nil
}

// decodeValue reads an arbitrary JSON value into string/int64/float64/bool/
// nil/[]any/map[string]any.
func decodeValue(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		if n.IsInt() {
			return n.Int64()
		}
		return n.Float64()
	case jx.Bool:
		return d.Bool()
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
		var arr []any
		err := d.Arr(func(d *jx.Decoder) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			arr = append(arr, v)
			return nil
		})
		return arr, err
	case jx.Object:
		obj := make(map[string]any)
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			obj[string(key)] = v
			return nil
		})
		return obj, err
	default:
		return nil, d.Skip()
	}
}

// encodeValue writes the supported Go value types back out as JSON.
func encodeValue(e *jx.Encoder, v any) {
	switch t := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(t)
	case bool:
		e.Bool(t)
	case int:
		e.Int(t)
	case int64:
		e.Int64(t)
	case float64:
		e.Float64(t)
	case time.Time:
		e.Str(t.Format(time.RFC3339))
	case []string:
		e.ArrStart()
		for _, s := range t {
			e.Str(s)
		}
		e.ArrEnd()
	case []any:
		e.ArrStart()
		for _, el := range t {
			encodeValue(e, el)
		}
		e.ArrEnd()
	case map[string]any:
		e.ObjStart()
		for k, el := range t {
			e.FieldStart(k)
			encodeValue(e, el)
		}
		e.ObjEnd()
	default:
		e.Null()
	}
}

// Query is one encoded list filter.
type Query string

func methodQuery(method, attribute string, values ...any) Query {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("method")
	e.Str(method)
	if attribute != "" {
		e.FieldStart("attribute")
		e.Str(attribute)
	}
	if values != nil {
		e.FieldStart("values")
		e.ArrStart()
		for _, v := range values {
			encodeValue(e, v)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
	return Query(e.String())
}

// QueryEqual filters on exact attribute equality.
func QueryEqual(attribute string, value any) Query {
	return methodQuery("equal", attribute, value)
}

// QuerySearch filters on full-text/substring match of the attribute.
func QuerySearch(attribute, value string) Query {
	return methodQuery("search", attribute, value)
}

// QueryIsNull matches documents whose attribute is null.
func QueryIsNull(attribute string) Query {
	return methodQuery("isNull", attribute)
}

// QueryLimit caps the page size.
func QueryLimit(n int) Query {
	return methodQuery("limit", "", n)
}

// QueryOffset skips the first n matches.
func QueryOffset(n int) Query {
	return methodQuery("offset", "", n)
}

// QueryOrderDesc sorts descending by the attribute.
func QueryOrderDesc(attribute string) Query {
	return methodQuery("orderDesc", attribute)
}

func encodeQueries(queries []Query) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = "queries[]=" + url.QueryEscape(string(q))
	}
	return out
}
