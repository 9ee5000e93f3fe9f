// Package parts encodes caller arguments into the ordered wire parts of an
// inference request, driven by a method signature.
package parts

import (
	"encoding/json"
	"fmt"
)

// Part is one unit of the encoded request body. ID is the field name, empty
// for positional array elements.
type Part struct {
	ID   string
	Data Data
}

// Data is the payload of a Part. The set of implementations is closed.
type Data interface{ isData() }

// Slot identifies which scalar slot of a Scalar carries the value.
type Slot int

const (
	SlotNone Slot = iota
	SlotString
	SlotInt
	SlotFloat
	// SlotBool marks a value that was itself a boolean; only Bool is meaningful.
	SlotBool
)

// Scalar holds at most one of String, Int or Float, selected by Slot. Bool is
// always assigned from the source value, whatever the declared kind.
type Scalar struct {
	Slot   Slot
	String string
	Int    int64
	Float  float64
	Bool   bool
}

// ImageData carries a structured image.
type ImageData struct{ Image Image }

// AudioData carries a structured audio clip.
type AudioData struct{ Audio Audio }

// VideoData carries a structured video.
type VideoData struct{ Video Video }

// Concepts is a structured concept list.
type Concepts []Concept

// Regions is a structured region list.
type Regions []Region

// Frames is a structured frame list.
type Frames []Frame

// Nested is the ordered parts of a composite field.
type Nested []Part

// JSONData is a record serialized to JSON text.
type JSONData struct{ Raw string }

func (*Scalar) isData()    {}
func (*ImageData) isData() {}
func (*AudioData) isData() {}
func (*VideoData) isData() {}
func (Concepts) isData()   {}
func (Regions) isData()    {}
func (Frames) isData()     {}
func (Nested) isData()     {}
func (JSONData) isData()   {}

// WireData is the flat, proto-shaped representation of a Part's data that is
// handed to the transport.
type WireData struct {
	StringValue *string   `json:"string_value,omitempty"`
	IntValue    *int64    `json:"int_value,omitempty"`
	FloatValue  *float64  `json:"float_value,omitempty"`
	BoolValue   *bool     `json:"bool_value,omitempty"`
	Text        *Text     `json:"text,omitempty"`
	Image       *Image    `json:"image,omitempty"`
	Audio       *Audio    `json:"audio,omitempty"`
	Video       *Video    `json:"video,omitempty"`
	Concepts    []Concept `json:"concepts,omitempty"`
	Regions     []Region  `json:"regions,omitempty"`
	Frames      []Frame   `json:"frames,omitempty"`
	Parts       []Part    `json:"parts,omitempty"`
}

type wirePart struct {
	ID   string   `json:"id,omitempty"`
	Data WireData `json:"data"`
}

// Wire flattens d into its wire shape.
func Wire(d Data) WireData {
	var w WireData
	switch t := d.(type) {
	case *Scalar:
		b := t.Bool
		w.BoolValue = &b
		switch t.Slot {
		case SlotString:
			s := t.String
			w.StringValue = &s
		case SlotInt:
			n := t.Int
			w.IntValue = &n
		case SlotFloat:
			f := t.Float
			w.FloatValue = &f
		}
	case JSONData:
		s := t.Raw
		b := false
		w.StringValue = &s
		w.BoolValue = &b
	case *ImageData:
		img := t.Image
		w.Image = &img
	case *AudioData:
		a := t.Audio
		w.Audio = &a
	case *VideoData:
		v := t.Video
		w.Video = &v
	case Concepts:
		w.Concepts = []Concept(t)
	case Regions:
		w.Regions = []Region(t)
	case Frames:
		w.Frames = []Frame(t)
	case Nested:
		w.Parts = []Part(t)
	}
	return w
}

// FromWire rebuilds the Data variant for a wire object. Scalar slots take
// precedence in the order string, int, float.
func FromWire(w WireData) Data {
	switch {
	case len(w.Parts) > 0:
		return Nested(w.Parts)
	case w.Image != nil:
		return &ImageData{Image: *w.Image}
	case w.Audio != nil:
		return &AudioData{Audio: *w.Audio}
	case w.Video != nil:
		return &VideoData{Video: *w.Video}
	case len(w.Concepts) > 0:
		return Concepts(w.Concepts)
	case len(w.Regions) > 0:
		return Regions(w.Regions)
	case len(w.Frames) > 0:
		return Frames(w.Frames)
	}
	s := &Scalar{}
	if w.BoolValue != nil {
		s.Bool = *w.BoolValue
	}
	switch {
	case w.StringValue != nil:
		s.Slot, s.String = SlotString, *w.StringValue
	case w.IntValue != nil:
		s.Slot, s.Int = SlotInt, *w.IntValue
	case w.FloatValue != nil:
		s.Slot, s.Float = SlotFloat, *w.FloatValue
	case w.BoolValue != nil && s.Bool:
		s.Slot = SlotBool
	}
	return s
}

// MarshalJSON writes the proto-shaped wire form.
func (p Part) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePart{ID: p.ID, Data: Wire(p.Data)})
}

// UnmarshalJSON reads the proto-shaped wire form.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parts:part - failed to decode part: %w", err)
	}
	p.ID = w.ID
	p.Data = FromWire(w.Data)
	return nil
}
