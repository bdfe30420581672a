// Package effects holds the fixed voice-effect presets handed to ffmpeg.
package effects

import "sort"

// Definition describes one voice effect. Filters are ffmpeg audio filter
// expressions applied left to right.
type Definition struct {
	ID          string   `json:"-"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Filters     []string `json:"filters"`
}

// Catalog is a read-only lookup table of effect definitions.
type Catalog struct {
	effects map[string]Definition
}

// NewCatalog builds a catalog from the given definitions. Later definitions
// with a duplicate ID replace earlier ones.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{effects: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		d.Filters = append([]string(nil), d.Filters...)
		c.effects[d.ID] = d
	}
	return c
}

// Default returns the catalog of built-in presets.
func Default() *Catalog {
	return NewCatalog(builtin...)
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	d, ok := c.effects[id]
	if !ok {
		return Definition{}, false
	}
	d.Filters = append([]string(nil), d.Filters...)
	return d, true
}

// List returns a copy of every definition keyed by ID.
func (c *Catalog) List() map[string]Definition {
	out := make(map[string]Definition, len(c.effects))
	for id := range c.effects {
		d, _ := c.Lookup(id)
		out[id] = d
	}
	return out
}

// IDs returns the effect identifiers in lexical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.effects))
	for id := range c.effects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len reports the number of effects.
func (c *Catalog) Len() int {
	return len(c.effects)
}

var builtin = []Definition{
	{
		ID:          "robot",
		Name:        "Robot Voice",
		Description: "Transform voice into robotic sound",
		Icon:        "fas fa-robot",
		Filters: []string{
			"aresample=8000",
			"aformat=sample_rates=8000",
			"aresample=44100",
			"vibrato=f=30:d=0.5",
		},
	},
	{
		ID:          "chipmunk",
		Name:        "Chipmunk Voice",
		Description: "High-pitched cartoon-like voice",
		Icon:        "fas fa-laugh-squint",
		Filters: []string{
			"asetrate=44100*1.8",
			"aresample=44100",
			"atempo=0.8",
		},
	},
	{
		ID:          "deep",
		Name:        "Deep Voice",
		Description: "Lower and deeper voice tone",
		Icon:        "fas fa-volume-down",
		Filters: []string{
			"asetrate=44100*0.7",
			"aresample=44100",
			"atempo=1.3",
		},
	},
	{
		ID:          "echo",
		Name:        "Echo Effect",
		Description: "Add echo and reverb to voice",
		Icon:        "fas fa-broadcast-tower",
		Filters: []string{
			"aecho=0.8:0.88:60:0.4",
		},
	},
	{
		ID:          "reverse",
		Name:        "Reverse Audio",
		Description: "Play audio in reverse",
		Icon:        "fas fa-backward",
		Filters: []string{
			"areverse",
		},
	},
	{
		ID:          "phone",
		Name:        "Phone Call",
		Description: "Simulate phone call quality",
		Icon:        "fas fa-phone",
		Filters: []string{
			"highpass=f=300",
			"lowpass=f=3000",
			"volume=1.2",
		},
	},
	{
		ID:          "alien",
		Name:        "Alien Voice",
		Description: "Otherworldly voice effect",
		Icon:        "fas fa-user-astronaut",
		Filters: []string{
			"asetrate=44100*1.2",
			"aresample=44100",
			"tremolo=f=20:d=0.5",
			"chorus=0.7:0.9:55:0.4:0.25:2",
		},
	},
	{
		ID:          "monster",
		Name:        "Monster Voice",
		Description: "Scary monster voice",
		Icon:        "fas fa-dragon",
		Filters: []string{
			"asetrate=44100*0.5",
			"aresample=44100",
			"atempo=1.8",
			"vibrato=f=10:d=0.8",
		},
	},
	{
		ID:          "whisper",
		Name:        "Whisper Effect",
		Description: "Soft whisper-like voice",
		Icon:        "fas fa-comment",
		Filters: []string{
			"volume=0.3",
			"highpass=f=1000",
			"lowpass=f=4000",
		},
	},
	{
		ID:          "radio",
		Name:        "Radio Voice",
		Description: "Old radio broadcast effect",
		Icon:        "fas fa-radio",
		Filters: []string{
			"highpass=f=500",
			"lowpass=f=2000",
			"volume=1.5",
			"tremolo=f=6:d=0.3",
		},
	},
}
