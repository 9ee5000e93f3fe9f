package parts

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/morezero/inference-client/pkg/args"
)

// Text is raw or hosted text content of an input.
type Text struct {
	Raw string `json:"raw,omitempty"`
	URL string `json:"url,omitempty"`
}

// Image is a hosted or inline image.
type Image struct {
	URL               string `json:"url,omitempty"`
	Base64            []byte `json:"base64,omitempty"`
	AllowDuplicateURL bool   `json:"allow_duplicate_url,omitempty"`
}

// Audio is a hosted or inline audio clip.
type Audio struct {
	URL               string `json:"url,omitempty"`
	Base64            []byte `json:"base64,omitempty"`
	AllowDuplicateURL bool   `json:"allow_duplicate_url,omitempty"`
}

// Video is a hosted or inline video.
type Video struct {
	URL               string `json:"url,omitempty"`
	Base64            []byte `json:"base64,omitempty"`
	AllowDuplicateURL bool   `json:"allow_duplicate_url,omitempty"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
}

// Concept is a labelled score.
type Concept struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name,omitempty"`
	Value    float64 `json:"value,omitempty"`
	AppID    string  `json:"app_id,omitempty"`
	Language string  `json:"language,omitempty"`
}

// BoundingBox is expressed as fractions of the image dimensions.
type BoundingBox struct {
	TopRow    float64 `json:"top_row,omitempty"`
	LeftCol   float64 `json:"left_col,omitempty"`
	BottomRow float64 `json:"bottom_row,omitempty"`
	RightCol  float64 `json:"right_col,omitempty"`
}

// RegionInfo locates a region.
type RegionInfo struct {
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// Annotation is the data attached to a region or frame.
type Annotation struct {
	Concepts []Concept `json:"concepts,omitempty"`
	Text     *Text     `json:"text,omitempty"`
}

// Region is an annotated area of an image or frame.
type Region struct {
	ID         string      `json:"id,omitempty"`
	RegionInfo *RegionInfo `json:"region_info,omitempty"`
	Value      float64     `json:"value,omitempty"`
	Data       *Annotation `json:"data,omitempty"`
}

// FrameInfo positions a frame within a video.
type FrameInfo struct {
	Index uint32 `json:"index,omitempty"`
	Time  uint32 `json:"time,omitempty"`
}

// Frame is an annotated video frame.
type Frame struct {
	ID        string      `json:"id,omitempty"`
	FrameInfo *FrameInfo  `json:"frame_info,omitempty"`
	Data      *Annotation `json:"data,omitempty"`
}

var bytesType = reflect.TypeOf([]byte(nil))

// base64Hook decodes base64 text into byte slices.
func base64Hook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != bytesType {
		return data, nil
	}
	b, err := base64.StdEncoding.DecodeString(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return b, nil
}

// matchName accepts snake_case and camelCase spellings of a field name.
func matchName(mapKey, fieldName string) bool {
	norm := func(s string) string { return strings.ToLower(strings.ReplaceAll(s, "_", "")) }
	return norm(mapKey) == norm(fieldName)
}

// decodeInto fills out from a partial record. Unknown keys are ignored.
func decodeInto(in interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       base64Hook,
		WeaklyTypedInput: true,
		TagName:          "json",
		MatchName:        matchName,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args.Plain(in))
}

// DecodeImage builds an Image from a partial record.
func DecodeImage(v interface{}) (Image, error) {
	var img Image
	err := decodeInto(v, &img)
	return img, err
}

// DecodeAudio builds an Audio from a partial record.
func DecodeAudio(v interface{}) (Audio, error) {
	var a Audio
	err := decodeInto(v, &a)
	return a, err
}

// DecodeVideo builds a Video from a partial record.
func DecodeVideo(v interface{}) (Video, error) {
	var vid Video
	err := decodeInto(v, &vid)
	return vid, err
}

// DecodeConcept builds a Concept from a partial record.
func DecodeConcept(v interface{}) (Concept, error) {
	var c Concept
	err := decodeInto(v, &c)
	return c, err
}

// DecodeRegion builds a Region from a partial record.
func DecodeRegion(v interface{}) (Region, error) {
	var r Region
	err := decodeInto(v, &r)
	return r, err
}

// DecodeFrame builds a Frame from a partial record.
func DecodeFrame(v interface{}) (Frame, error) {
	var f Frame
	err := decodeInto(v, &f)
	return f, err
}
