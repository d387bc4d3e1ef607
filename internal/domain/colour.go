package domain

// Colour is an index into the fixed route palette.
type Colour int

const (
	ColourBlue Colour = iota
	ColourRed
	ColourGreen
	ColourOrange
	ColourPurple
	ColourSlate
)

// PaletteSize is the number of distinct route colours.
const PaletteSize = 6

type colourShades struct {
	name    string
	pickup  string
	dropoff string
}

// Pickups use the dark shade, dropoffs the light one.
var palette = [PaletteSize]colourShades{
	ColourBlue:   {"blue", "#1E3A8A", "#3B82F6"},
	ColourRed:    {"red", "#991B1B", "#EF4444"},
	ColourGreen:  {"green", "#166534", "#22C55E"},
	ColourOrange: {"orange", "#9A3412", "#F97316"},
	ColourPurple: {"purple", "#5B21B6", "#8B5CF6"},
	ColourSlate:  {"slate", "#334155", "#94A3B8"},
}

// ColourAt returns the palette colour for the n-th route of a slot (round-robin).
func ColourAt(n int) Colour {
	if n < 0 {
		n = -n
	}
	return Colour(n % PaletteSize)
}

func (c Colour) Valid() bool { return c >= 0 && int(c) < PaletteSize }

func (c Colour) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return palette[c].name
}

// Shade returns the hex colour used to render a stop of the given kind.
func (c Colour) Shade(kind StopKind) string {
	if !c.Valid() {
		return ""
	}
	if kind == StopPickup {
		return palette[c].pickup
	}
	return palette[c].dropoff
}
