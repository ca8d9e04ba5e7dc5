package domain

// FragmentRef identifies one rendered fragment on a surface.
type FragmentRef struct {
	SurfaceID string `json:"surface_id"`
	ID        string `json:"id"`
}

// ButtonStyle hints at how a button is drawn.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is a clickable control carrying an opaque event identifier.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Option is one entry of a select menu.
type Option struct {
	Label       string
	Value       string
	Description string
}

// Select is a dropdown. Platforms cap the number of options per prompt.
type Select struct {
	CustomID    string
	Placeholder string
	Options     []Option
}

// Fragment is one renderable unit of UI.
type Fragment struct {
	Content string
	Select  *Select
	Buttons []Button
}

// FormField is a single numeric input of a modal form.
type FormField struct {
	ID          string
	Label       string
	Placeholder string
	Value       string
}

// Form is a modal batched-input prompt. Platforms cap the number of fields per form.
type Form struct {
	CustomID string
	Title    string
	Fields   []FormField
}
