package domain

type Envelope struct {
	Meta
	Name string `json:"name"`
}

func (e Envelope) SameContent(other Envelope) bool {
	return e.Name == other.Name
}

// Archive is a no-op: envelopes keep no history.
func (e Envelope) Archive(Envelope, string) (Envelope, bool) {
	return e, false
}

func (e Envelope) WithOrigin(origin OriginDevice) Envelope {
	e.Origin = origin
	return e
}

type CreateEnvelopeRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type UpdateEnvelopeRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type EnvelopeResponse struct {
	Envelope
	NoteCount int `json:"note_count"`
}
