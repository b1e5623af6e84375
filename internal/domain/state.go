package domain

// WorldState holds the world attributes collected during world creation.
// The backend replaces it wholesale on every world-builder response; fields
// stay empty until the agent has inferred them.
type WorldState struct {
	Name           string         `json:"name,omitempty"`
	Geography      string         `json:"geography,omitempty"`
	History        string         `json:"history,omitempty"`
	Cultures       string         `json:"cultures,omitempty"`
	MagicSystem    string         `json:"magic_system,omitempty"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// CharacterState holds the player character attributes collected during
// character creation. Replaced wholesale like WorldState.
type CharacterState struct {
	Name               string         `json:"name,omitempty"`
	PhysicalAppearance string         `json:"physical_appearance,omitempty"`
	Background         string         `json:"background,omitempty"`
	InternalMotivation string         `json:"internal_motivation,omitempty"`
	UniqueTraits       string         `json:"unique_traits,omitempty"`
	AdditionalInfo     map[string]any `json:"additional_info,omitempty"`
}

// Attribute is a labeled state value for display.
type Attribute struct {
	Label string
	Value string
}

// Known returns the filled world attributes in display order.
func (w WorldState) Known() []Attribute {
	return known([]Attribute{
		{"Name", w.Name},
		{"Geography", w.Geography},
		{"History", w.History},
		{"Cultures", w.Cultures},
		{"Magic", w.MagicSystem},
	})
}

// Known returns the filled character attributes in display order.
func (c CharacterState) Known() []Attribute {
	return known([]Attribute{
		{"Name", c.Name},
		{"Appearance", c.PhysicalAppearance},
		{"Background", c.Background},
		{"Motivation", c.InternalMotivation},
		{"Traits", c.UniqueTraits},
	})
}

func known(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Value != "" {
			out = append(out, a)
		}
	}
	return out
}
