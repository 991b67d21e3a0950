package domain

type Label struct {
	Meta
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (l Label) SameContent(other Label) bool {
	return l.Name == other.Name && l.Color == other.Color
}

func (l Label) Archive(Label, string) (Label, bool) {
	return l, false
}

func (l Label) WithOrigin(origin OriginDevice) Label {
	l.Origin = origin
	return l
}

type CreateLabelRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=50"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type UpdateLabelRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}
