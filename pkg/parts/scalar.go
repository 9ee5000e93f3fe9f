package parts

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/signature"
)

// EncodeScalar places a structural value into the slot its declared kind
// selects. Bool is taken from the value itself whatever the kind.
//
//   - a number under FLOAT goes to the float slot, under INT it is truncated
//     into the int slot, under any other kind it is formatted into the
//     string slot
//   - a string under FLOAT or INT is parsed; a string that does not parse is a
//     TYPE_VALIDATION_FAILURE. Any other kind keeps it in the string slot
//   - an empty string, null, struct or list populates no slot
func EncodeScalar(field string, v *structpb.Value, kind signature.DataKind) (*Scalar, error) {
	s := &Scalar{Bool: v.GetBoolValue()}

	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		switch {
		case kind == signature.KindFloat:
			s.Slot, s.Float = SlotFloat, n
		case kind == signature.KindInt:
			s.Slot, s.Int = SlotInt, int64(math.Trunc(n))
		default:
			s.Slot, s.String = SlotString, strconv.FormatFloat(n, 'f', -1, 64)
		}
	case *structpb.Value_StringValue:
		str := k.StringValue
		if str == "" {
			return s, nil
		}
		switch kind {
		case signature.KindFloat:
			f, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, apierr.TypeValidation(field, kind.String(), err)
			}
			s.Slot, s.Float = SlotFloat, f
		case signature.KindInt:
			f, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, apierr.TypeValidation(field, kind.String(), err)
			}
			s.Slot, s.Int = SlotInt, int64(math.Trunc(f))
		default:
			s.Slot, s.String = SlotString, str
		}
	case *structpb.Value_BoolValue:
		s.Slot = SlotBool
	}
	return s, nil
}

// ToValue converts a runtime value to its structural form. Values structpb
// cannot represent directly are round-tripped through JSON.
func ToValue(v interface{}) (*structpb.Value, error) {
	plain := args.Plain(v)
	if val, err := structpb.NewValue(plain); err == nil {
		return val, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("parts:scalar - unsupported value %T: %w", v, err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parts:scalar - unsupported value %T: %w", v, err)
	}
	return structpb.NewValue(generic)
}

// EncodeGo is EncodeScalar for a runtime value.
func EncodeGo(field string, v interface{}, kind signature.DataKind) (*Scalar, error) {
	val, err := ToValue(v)
	if err != nil {
		return nil, apierr.TypeValidation(field, kind.String(), err)
	}
	return EncodeScalar(field, val, kind)
}
