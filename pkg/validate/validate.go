// Package validate checks caller arguments against a method signature before
// anything is encoded.
package validate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"reflect"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/signature"
)

const logPrefix = "validate:params"

// predicate reports whether a runtime value conforms to a data kind.
type predicate func(v interface{}) bool

var predicates = map[signature.DataKind]predicate{
	signature.KindNotSet:       isNull,
	signature.KindStr:          isString,
	signature.KindBytes:        anyValue,
	signature.KindInt:          isInteger,
	signature.KindFloat:        isFractional,
	signature.KindBool:         isBool,
	signature.KindNDArray:      anyValue,
	signature.KindJSONData:     isRecord,
	signature.KindText:         isString,
	signature.KindImage:        anyValue,
	signature.KindConcept:      anyValue,
	signature.KindRegion:       anyValue,
	signature.KindFrame:        anyValue,
	signature.KindAudio:        anyValue,
	signature.KindVideo:        anyValue,
	signature.KindNamedFields:  isRecord,
	signature.KindTuple:        isArray,
	signature.KindList:         isArray,
	signature.KindUnrecognized: anyValue,
}

// Params validates params against the parameter-role fields of a method.
//
// Every missing required field is reported in one error. Unknown keys and
// type mismatches are reported for the first offending key in argument order.
func Params(params *args.Args, fields []signature.FieldSpec) error {
	var missing []string
	for _, f := range fields {
		if f.Required && !params.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		slog.Debug(fmt.Sprintf("%s - missing required fields %v", logPrefix, missing))
		return apierr.MissingRequiredFields(missing)
	}

	var err error
	params.Each(func(key string, v interface{}) bool {
		field := signature.Find(fields, key)
		if field == nil {
			err = apierr.UnknownField(key)
			return false
		}
		err = Value(field.Name, field.Type, v)
		return err == nil
	})
	return err
}

// Value checks a single value against kind.
func Value(name string, kind signature.DataKind, v interface{}) error {
	check, ok := predicates[kind]
	if !ok {
		return apierr.UnsupportedDataKind(name, kind.String())
	}
	if !check(v) {
		return apierr.TypeValidation(name, kind.String(), fmt.Errorf("got %T", v))
	}
	return nil
}

func anyValue(interface{}) bool { return true }

func isNull(v interface{}) bool { return v == nil }

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}

// Number returns v as a float64 when it is any Go numeric type or a json.Number.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isInteger(v interface{}) bool {
	f, ok := Number(v)
	return ok && !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// isFractional accepts finite numbers that are not integer-valued.
func isFractional(v interface{}) bool {
	f, ok := Number(v)
	return ok && !math.IsInf(f, 0) && !math.IsNaN(f) && f != math.Trunc(f)
}

// IsRecord reports whether v is a string-keyed object.
func IsRecord(v interface{}) bool {
	switch v.(type) {
	case *args.Args, map[string]interface{}:
		return true
	case nil:
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

func isRecord(v interface{}) bool { return IsRecord(v) }

// IsArray reports whether v is a slice or array.
func IsArray(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isArray(v interface{}) bool { return IsArray(v) }
