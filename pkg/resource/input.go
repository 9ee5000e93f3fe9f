package resource

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/morezero/inference-client/pkg/parts"
	"github.com/morezero/inference-client/pkg/transport"
)

// InputType is the media kind of a standalone input.
type InputType string

const (
	InputImage InputType = "image"
	InputText  InputType = "text"
	InputVideo InputType = "video"
	InputAudio InputType = "audio"
)

// ParseInputType validates s as an InputType.
func ParseInputType(s string) (InputType, error) {
	switch t := InputType(s); t {
	case InputImage, InputText, InputVideo, InputAudio:
		return t, nil
	}
	return "", fmt.Errorf("resource:input - unsupported input type %q, want image, text, video or audio", s)
}

func inputID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// InputFromURL builds an input referencing hosted media. An empty id is
// replaced by a random one.
func InputFromURL(id, url string, t InputType) transport.Input {
	var d parts.WireData
	switch t {
	case InputImage:
		d.Image = &parts.Image{URL: url}
	case InputText:
		d.Text = &parts.Text{URL: url}
	case InputVideo:
		d.Video = &parts.Video{URL: url}
	case InputAudio:
		d.Audio = &parts.Audio{URL: url}
	}
	return transport.Input{ID: inputID(id), Data: d}
}

// InputFromBytes builds an input carrying inline media. Text bytes are sent
// as raw text.
func InputFromBytes(id string, data []byte, t InputType) transport.Input {
	var d parts.WireData
	switch t {
	case InputImage:
		d.Image = &parts.Image{Base64: data}
	case InputText:
		d.Text = &parts.Text{Raw: string(data)}
	case InputVideo:
		d.Video = &parts.Video{Base64: data}
	case InputAudio:
		d.Audio = &parts.Audio{Base64: data}
	}
	return transport.Input{ID: inputID(id), Data: d}
}
