package domain

import (
	"fmt"
	"strings"
	"sync"
)

// groupColors are the fixed colors of the known production groups.
var groupColors = map[string]string{
	"hydro":   "blue",
	"wind":    "orange",
	"solar":   "yellow",
	"thermal": "green",
	"other":   "black",
}

// pastel1 is the qualitative Pastel1 scheme used for groups outside groupColors.
var pastel1 = []string{
	"rgb(251,180,174)", "rgb(179,205,227)", "rgb(204,235,197)",
	"rgb(222,203,228)", "rgb(254,217,166)", "rgb(255,255,204)",
	"rgb(229,216,189)", "rgb(253,218,236)", "rgb(242,242,242)",
}

// Palette assigns stable colors to groups. Unknown groups are assigned Pastel1
// colors in first-seen order. It is safe for concurrent use.
type Palette struct {
	mu       sync.Mutex
	assigned map[string]string
}

// NewPalette returns a palette seeded with the fixed group colors.
func NewPalette() *Palette {
	assigned := make(map[string]string, len(groupColors))
	for g, c := range groupColors {
		assigned[g] = c
	}
	return &Palette{assigned: assigned}
}

// Color returns the color of group, assigning one if it has not been seen.
func (p *Palette) Color(group string) string {
	key := strings.ToLower(strings.TrimSpace(group))

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.assigned[key]; ok {
		return c
	}
	c := pastel1[len(p.assigned)%len(pastel1)]
	p.assigned[key] = c
	return c
}

// RampColor maps value within [lo, hi] onto a green-yellow-red hex ramp.
// A range narrower than 1e-9 is widened to 1.
func RampColor(value, lo, hi float64) string {
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	norm := (value - lo) / (hi - lo)
	norm = min(max(norm, 0), 1)

	var r, g int
	if norm <= 0.5 {
		r = int(255 * (norm / 0.5))
		g = 255
	} else {
		r = 255
		g = int(255 * (1 - (norm-0.5)/0.5))
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, 0)
}
