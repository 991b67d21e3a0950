package replication

import (
	"encoding/json"
	"errors"
	"fmt"

	"noteenvelope-sync/internal/domain"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedEvent = errors.New("malformed sync event")

type Codec struct {
	validate *validator.Validate
}

func NewCodec() *Codec {
	return &Codec{validate: validator.New()}
}

func (c *Codec) check(ev domain.SyncEvent) error {
	if ev.Kind == domain.SyncRequested {
		return c.validate.StructExcept(ev, "Collection", "RecordID", "Version", "Payload")
	}
	return c.validate.Struct(ev)
}

func (c *Codec) Encode(ev domain.SyncEvent) ([]byte, error) {
	if err := c.check(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return json.Marshal(ev)
}

func (c *Codec) Decode(data []byte) (domain.SyncEvent, error) {
	var ev domain.SyncEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := c.check(ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}
