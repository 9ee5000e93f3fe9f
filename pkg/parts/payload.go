package parts

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/signature"
	"github.com/morezero/inference-client/pkg/validate"
)

// EncodePayload converts payload arguments into ordered parts.
//
// An array payload yields one unnamed scalar part per element, each encoded
// with the kind of the first field. A record payload yields one named part
// per key in argument order; composite fields recurse into their type
// arguments and structured kinds decode into their media types.
func EncodePayload(payload interface{}, fields []signature.FieldSpec) ([]Part, error) {
	switch {
	case validate.IsArray(payload):
		return encodeArray(payload, fields)
	case validate.IsRecord(payload):
		return encodeRecord(payload, fields)
	case payload == nil:
		return nil, nil
	}
	return nil, fmt.Errorf("parts:payload - payload must be a record or an array, got %T", payload)
}

func encodeArray(payload interface{}, fields []signature.FieldSpec) ([]Part, error) {
	kind := signature.KindNotSet
	if len(fields) > 0 {
		kind = fields[0].Type
	}

	items := elements(payload)
	out := make([]Part, 0, len(items))
	for _, item := range items {
		if item == nil || validate.IsRecord(item) || validate.IsArray(item) {
			raw, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("parts:payload - failed to serialize array element: %w", err)
			}
			item = string(raw)
		}
		s, err := EncodeGo("", item, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, Part{Data: s})
	}
	return out, nil
}

func encodeRecord(payload interface{}, fields []signature.FieldSpec) ([]Part, error) {
	rec := asArgs(payload)
	out := make([]Part, 0, rec.Len())
	var err error
	rec.Each(func(key string, v interface{}) bool {
		var p Part
		p, err = encodeField(key, v, signature.Find(fields, key))
		if err != nil {
			return false
		}
		out = append(out, p)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeField(name string, v interface{}, field *signature.FieldSpec) (Part, error) {
	kind := signature.KindNotSet
	if field != nil {
		kind = field.Type
	}
	composite := validate.IsRecord(v) || validate.IsArray(v)

	if field != nil && len(field.TypeArgs) > 0 && composite {
		nested, err := EncodePayload(v, field.TypeArgs)
		if err != nil {
			return Part{}, err
		}
		return Part{ID: name, Data: Nested(nested)}, nil
	}

	if !composite {
		s, err := EncodeGo(name, v, kind)
		if err != nil {
			return Part{}, err
		}
		return Part{ID: name, Data: s}, nil
	}

	isArray := validate.IsArray(v)
	switch {
	case kind == signature.KindImage && !isArray:
		img, err := DecodeImage(v)
		if err != nil {
			return Part{}, apierr.TypeValidation(name, kind.String(), err)
		}
		return Part{ID: name, Data: &ImageData{Image: img}}, nil
	case kind == signature.KindAudio && !isArray:
		a, err := DecodeAudio(v)
		if err != nil {
			return Part{}, apierr.TypeValidation(name, kind.String(), err)
		}
		return Part{ID: name, Data: &AudioData{Audio: a}}, nil
	case kind == signature.KindVideo && !isArray:
		vid, err := DecodeVideo(v)
		if err != nil {
			return Part{}, apierr.TypeValidation(name, kind.String(), err)
		}
		return Part{ID: name, Data: &VideoData{Video: vid}}, nil
	case kind == signature.KindConcept:
		list, err := decodeList(name, kind, v, DecodeConcept)
		return Part{ID: name, Data: Concepts(list)}, err
	case kind == signature.KindRegion:
		list, err := decodeList(name, kind, v, DecodeRegion)
		return Part{ID: name, Data: Regions(list)}, err
	case kind == signature.KindFrame:
		list, err := decodeList(name, kind, v, DecodeFrame)
		return Part{ID: name, Data: Frames(list)}, err
	}

	// JSON_DATA, and any structured value no other kind claims
	raw, err := json.Marshal(v)
	if err != nil {
		return Part{}, apierr.TypeValidation(name, kind.String(), err)
	}
	return Part{ID: name, Data: JSONData{Raw: string(raw)}}, nil
}

// decodeList decodes a single record into a one-element list, or each
// element of an array.
func decodeList[T any](name string, kind signature.DataKind, v interface{}, decode func(interface{}) (T, error)) ([]T, error) {
	items := []interface{}{v}
	if validate.IsArray(v) {
		items = elements(v)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !validate.IsRecord(item) {
			return nil, apierr.TypeValidation(name, kind.String(), fmt.Errorf("list element is %T, not a record", item))
		}
		d, err := decode(item)
		if err != nil {
			return nil, apierr.TypeValidation(name, kind.String(), err)
		}
		out = append(out, d)
	}
	return out, nil
}

func elements(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// asArgs views any record as Args. Plain maps have no order, so their keys
// are sorted.
func asArgs(v interface{}) *args.Args {
	switch t := v.(type) {
	case *args.Args:
		return t
	case map[string]interface{}:
		return args.FromMap(t)
	}
	rv := reflect.ValueOf(v)
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	out := args.New()
	for _, k := range keys {
		out.Set(k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
	}
	return out
}
