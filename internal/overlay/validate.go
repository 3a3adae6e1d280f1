package overlay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalid wraps every validation failure. Invalid input is rejected before any remote call.
	ErrInvalid = errors.New("invalid overlay")

	// ErrNotFound is returned when an id is not in the local collection.
	ErrNotFound = errors.New("overlay not found")
)

// Font size bounds accepted by the form.
const (
	MinFontSize = 8
	MaxFontSize = 72
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks a draft against the overlay schema. All failures are joined.
func (d Draft) Validate() error {
	return validateFields(d.Name, d.Type, d.Content, d.Position, d.Size, d.Style)
}

// Validate checks every field the patch sets. It does not know the overlay it
// will be merged onto; callers validate the merged result as well.
func (p Patch) Validate() error {
	if p.Empty() {
		return invalid("empty update")
	}
	var errs []error
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs = append(errs, invalid("name is required"))
	}
	if p.Type != nil {
		errs = append(errs, validateType(*p.Type))
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		errs = append(errs, invalid("content is required"))
	}
	if p.Position != nil {
		errs = append(errs, validatePosition(*p.Position))
	}
	if p.Size != nil {
		errs = append(errs, validateSize(*p.Size))
	}
	if p.Style != nil {
		errs = append(errs, validateStyle(*p.Style))
	}
	return errors.Join(errs...)
}

// Validate checks a complete overlay.
func (o Overlay) Validate() error {
	return validateFields(o.Name, o.Type, o.Content, o.Position, o.Size, o.Style)
}

func validateFields(name string, typ Type, content string, pos Position, size Size, style *Style) error {
	var errs []error
	if strings.TrimSpace(name) == "" {
		errs = append(errs, invalid("name is required"))
	}
	errs = append(errs, validateType(typ))
	if strings.TrimSpace(content) == "" {
		errs = append(errs, invalid("content is required"))
	}
	errs = append(errs, validatePosition(pos), validateSize(size))
	if style != nil {
		errs = append(errs, validateStyle(*style))
	}
	return errors.Join(errs...)
}

func validateType(t Type) error {
	switch t {
	case TypeText, TypeLogo:
		return nil
	default:
		return invalid("unknown type %q", t)
	}
}

func validatePosition(p Position) error {
	if p.X < 0 || p.Y < 0 {
		return invalid("position must be non-negative, got (%g, %g)", p.X, p.Y)
	}
	return nil
}

func validateSize(s Size) error {
	if s.Width < MinWidth || s.Height < MinHeight {
		return invalid("size must be at least %dx%d, got %gx%g", MinWidth, MinHeight, s.Width, s.Height)
	}
	return nil
}

func validateStyle(s Style) error {
	var errs []error
	switch s.TextAlign {
	case "", "left", "center", "right":
	default:
		errs = append(errs, invalid("unknown text alignment %q", s.TextAlign))
	}
	if s.FontSize != "" {
		n, err := ParseFontSize(s.FontSize)
		if err != nil {
			errs = append(errs, err)
		} else if n < MinFontSize || n > MaxFontSize {
			errs = append(errs, invalid("font size must be between %d and %d px", MinFontSize, MaxFontSize))
		}
	}
	return errors.Join(errs...)
}

// ParseFontSize reads a "<n>px" font size.
func ParseFontSize(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil {
		return 0, invalid("font size %q is not a pixel value", s)
	}
	return n, nil
}
