package overlay

// ID is the opaque identifier assigned by the remote store.
type ID string

// Type is the overlay variant.
type Type string

const (
	TypeText Type = "text"
	TypeLogo Type = "logo"
)

// Minimum overlay dimensions in pixels.
const (
	MinWidth  = 50
	MinHeight = 30
)

// Position is the container-relative top-left corner in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the overlay box in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style carries presentation hints. Only text overlays use it.
type Style struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Color           string `json:"color,omitempty"`
	FontSize        string `json:"fontSize,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	TextAlign       string `json:"textAlign,omitempty"`
}

// DefaultStyle is the style a fresh text overlay starts with.
var DefaultStyle = Style{
	BackgroundColor: "rgba(0, 0, 0, 0.7)",
	Color:           "white",
	FontSize:        "16px",
	FontWeight:      "normal",
	TextAlign:       "left",
}

// Overlay is a positioned, resizable text or image element composited on the video.
// The timestamps are owned by the remote store and passed through untouched.
type Overlay struct {
	ID       ID       `json:"_id"`
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Content  string   `json:"content"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Style    *Style   `json:"style,omitempty"`
	Visible  bool     `json:"visible"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Draft is the payload of a create call. The remote store assigns the id.
type Draft struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Content  string   `json:"content"`
	Position Position `json:"position"`
	Size     Size     `json:"size"`
	Style    *Style   `json:"style,omitempty"`
	Visible  bool     `json:"visible"`
}

// NewDraft returns a draft with the form defaults filled in.
func NewDraft() Draft {
	style := DefaultStyle
	return Draft{
		Type:     TypeText,
		Position: Position{X: 50, Y: 50},
		Size:     Size{Width: 200, Height: 50},
		Style:    &style,
		Visible:  true,
	}
}

// Patch is a tagged partial update: every non-nil field is a field that changed.
// A nil field is left out of the request body.
type Patch struct {
	Name     *string   `json:"name,omitempty"`
	Type     *Type     `json:"type,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
	Style    *Style    `json:"style,omitempty"`
	Visible  *bool     `json:"visible,omitempty"`
}

// PositionPatch builds the patch a finished drag sends.
func PositionPatch(p Position) Patch { return Patch{Position: &p} }

// SizePatch builds the patch a finished resize sends.
func SizePatch(s Size) Patch { return Patch{Size: &s} }

// VisiblePatch builds a visibility toggle.
func VisiblePatch(v bool) Patch { return Patch{Visible: &v} }

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Content == nil && p.Position == nil &&
		p.Size == nil && p.Style == nil && p.Visible == nil
}

// Apply returns o with the patch merged onto it. o is not modified.
func (p Patch) Apply(o Overlay) Overlay {
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Type != nil {
		o.Type = *p.Type
	}
	if p.Content != nil {
		o.Content = *p.Content
	}
	if p.Position != nil {
		o.Position = *p.Position
	}
	if p.Size != nil {
		o.Size = *p.Size
	}
	if p.Style != nil {
		s := *p.Style
		o.Style = &s
	}
	if p.Visible != nil {
		o.Visible = *p.Visible
	}
	return o
}
