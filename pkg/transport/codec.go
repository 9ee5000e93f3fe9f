package transport

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an envelope to JSON bytes.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON bytes into the given envelope.
func Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// jsonCodec carries envelopes over gRPC as JSON instead of protobuf.
type jsonCodec struct{}

// CodecName is the gRPC content-subtype of jsonCodec.
const CodecName = "json"

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := Encode(v)
	if err != nil {
		return nil, fmt.Errorf("transport:codec - marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := Decode(data, v); err != nil {
		return fmt.Errorf("transport:codec - unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }
