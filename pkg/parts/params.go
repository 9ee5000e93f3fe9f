package parts

import (
	"fmt"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/signature"
)

const logPrefix = "parts:params"

// EncodeParams flattens parameter arguments into one named scalar part per
// key, in argument order. Parameters never recurse: a record or list value
// populates no scalar slot.
func EncodeParams(params *args.Args, fields []signature.FieldSpec) ([]Part, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, params.Len())}
	var err error
	params.Each(func(key string, v interface{}) bool {
		var val *structpb.Value
		val, err = ToValue(v)
		if err != nil {
			kind := signature.KindNotSet
			if f := signature.Find(fields, key); f != nil {
				kind = f.Type
			}
			err = apierr.TypeValidation(key, kind.String(), err)
			return false
		}
		st.Fields[key] = val
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]Part, 0, params.Len())
	for _, key := range params.Keys() {
		kind := signature.KindNotSet
		if f := signature.Find(fields, key); f != nil {
			kind = f.Type
		}
		val := st.Fields[key]
		switch val.GetKind().(type) {
		case *structpb.Value_StructValue, *structpb.Value_ListValue:
			slog.Debug(fmt.Sprintf("%s - parameter %s is structured and carries no scalar value", logPrefix, key))
		}
		s, err := EncodeScalar(key, val, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, Part{ID: key, Data: s})
	}
	return out, nil
}
