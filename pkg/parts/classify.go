package parts

import (
	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/signature"
)

// Classified is the partition of caller arguments by field role.
type Classified struct {
	Payload *args.Args
	Params  *args.Args
}

// Classify splits in into payload and parameter arguments according to the
// role each key's field declares. Argument order is kept within each half.
// A key with no declared field fails with UNKNOWN_FIELD.
func Classify(in *args.Args, fields []signature.FieldSpec) (*Classified, error) {
	out := &Classified{Payload: args.New(), Params: args.New()}
	var err error
	in.Each(func(key string, v interface{}) bool {
		field := signature.Find(fields, key)
		if field == nil {
			err = apierr.UnknownField(key)
			return false
		}
		if field.IsParam {
			out.Params.Set(key, v)
		} else {
			out.Payload.Set(key, v)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
