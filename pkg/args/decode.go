package args

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const logPrefix = "args:decode"

// UnmarshalJSON decodes a JSON object, preserving key order at every level.
func (a *Args) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeJSONValue(dec)
	if err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	obj, ok := v.(*Args)
	if !ok {
		return fmt.Errorf("%s - expected a JSON object, got %T", logPrefix, v)
	}
	*a = *obj
	return nil
}

// ParseJSON decodes a JSON object into Args.
func ParseJSON(data []byte) (*Args, error) {
	a := &Args{}
	if err := a.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeJSONValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		// string, float64, bool or nil
		return tok, nil
	}
	switch delim {
	case '{':
		obj := &Args{values: make(map[string]interface{})}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		list := []interface{}{}
		for dec.More() {
			v, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// UnmarshalYAML decodes a YAML mapping, preserving key order at every level.
func (a *Args) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeYAMLNode(node)
	if err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	obj, ok := v.(*Args)
	if !ok {
		return fmt.Errorf("%s - expected a YAML mapping, got %T", logPrefix, v)
	}
	*a = *obj
	return nil
}

// ParseYAML decodes a YAML mapping into Args.
func ParseYAML(data []byte) (*Args, error) {
	a := &Args{}
	if err := yaml.Unmarshal(data, a); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeYAMLNode(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeYAMLNode(node.Content[0])
	case yaml.AliasNode:
		return decodeYAMLNode(node.Alias)
	case yaml.MappingNode:
		obj := &Args{values: make(map[string]interface{}, len(node.Content)/2)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			v, err := decodeYAMLNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]interface{}, 0, len(node.Content))
		for _, n := range node.Content {
			v, err := decodeYAMLNode(n)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
