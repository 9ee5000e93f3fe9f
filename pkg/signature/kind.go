package signature

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataKind is the declared data type of a method field. Ordinals are part of
// the wire contract.
type DataKind int32

const (
	KindUnrecognized DataKind = -1
	KindNotSet       DataKind = 0
	KindStr          DataKind = 1
	KindBytes        DataKind = 2
	KindInt          DataKind = 3
	KindFloat        DataKind = 4
	KindBool         DataKind = 5
	KindNDArray      DataKind = 6
	KindJSONData     DataKind = 7
	KindText         DataKind = 8
	KindImage        DataKind = 9
	KindConcept      DataKind = 10
	KindRegion       DataKind = 11
	KindFrame        DataKind = 12
	KindAudio        DataKind = 13
	KindVideo        DataKind = 14
	KindNamedFields  DataKind = 15
	KindTuple        DataKind = 16
	KindList         DataKind = 17
)

var kindNames = map[DataKind]string{
	KindUnrecognized: "UNRECOGNIZED",
	KindNotSet:       "NOT_SET",
	KindStr:          "STR",
	KindBytes:        "BYTES",
	KindInt:          "INT",
	KindFloat:        "FLOAT",
	KindBool:         "BOOL",
	KindNDArray:      "NDARRAY",
	KindJSONData:     "JSON_DATA",
	KindText:         "TEXT",
	KindImage:        "IMAGE",
	KindConcept:      "CONCEPT",
	KindRegion:       "REGION",
	KindFrame:        "FRAME",
	KindAudio:        "AUDIO",
	KindVideo:        "VIDEO",
	KindNamedFields:  "NAMED_FIELDS",
	KindTuple:        "TUPLE",
	KindList:         "LIST",
}

var kindsByName = func() map[string]DataKind {
	m := make(map[string]DataKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the upper-case kind name, or the ordinal for kinds outside the enumeration.
func (k DataKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return strconv.Itoa(int(k))
}

// Known reports whether k is one of the enumerated kinds.
func (k DataKind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind parses a kind from its name (case-insensitive) or its ordinal.
func ParseKind(s string) (DataKind, error) {
	s = strings.TrimSpace(s)
	if k, ok := kindsByName[strings.ToUpper(s)]; ok {
		return k, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return KindNotSet, fmt.Errorf("signature:kind - unknown data kind %q", s)
	}
	return DataKind(n), nil
}

// MarshalJSON encodes the kind as its ordinal.
func (k DataKind) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(k))), nil
}

// UnmarshalJSON accepts either the ordinal or the name.
func (k *DataKind) UnmarshalJSON(data []byte) error {
	var n int32
	if err := json.Unmarshal(data, &n); err == nil {
		*k = DataKind(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("signature:kind - invalid data kind %s", string(data))
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalYAML accepts either the ordinal or the name.
func (k *DataKind) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseKind(node.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
