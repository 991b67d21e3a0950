package domain

import (
	"bytes"
	"encoding/json"
)

// OriginDevice identifies the device that produced a record state. The zero
// value is Unknown, which legacy records carry and which means the state was
// authored by the local device.
type OriginDevice struct {
	id string
}

var UnknownDevice = OriginDevice{}

func KnownDevice(id string) OriginDevice {
	return OriginDevice{id: id}
}

// Device returns the device id and whether it is known.
func (o OriginDevice) Device() (string, bool) {
	return o.id, o.id != ""
}

func (o OriginDevice) IsKnown() bool {
	return o.id != ""
}

// OrSelf resolves Unknown to the given local device.
func (o OriginDevice) OrSelf(self string) OriginDevice {
	if o.IsKnown() {
		return o
	}
	return KnownDevice(self)
}

func (o OriginDevice) String() string {
	if !o.IsKnown() {
		return "unknown"
	}
	return o.id
}

func (o OriginDevice) MarshalJSON() ([]byte, error) {
	if !o.IsKnown() {
		return []byte("null"), nil
	}
	return json.Marshal(o.id)
}

func (o *OriginDevice) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.id = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.id = id
	return nil
}
