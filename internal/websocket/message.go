package websocket

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidFrame = errors.New("invalid relay frame")

// Frame is the unit the relay fans out to a topic. Sealed is opaque to the
// relay; only devices holding the shared key can open it.
type Frame struct {
	Sender string    `json:"sender"`
	Sealed []byte    `json:"sealed"`
	SentAt time.Time `json:"sent_at"`
}

func NewFrame(sender string, sealed []byte) Frame {
	return Frame{Sender: sender, Sealed: sealed, SentAt: time.Now().UTC()}
}

func (f Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, errors.Join(ErrInvalidFrame, err)
	}
	if f.Sender == "" || len(f.Sealed) == 0 {
		return Frame{}, ErrInvalidFrame
	}
	return f, nil
}
