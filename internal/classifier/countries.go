package classifier

import "strings"

// Countries is the configured set of country names that open a group in the export.
type Countries struct {
	names  []string
	exact  map[string]struct{}
	folded map[string]string
}

// NewCountries builds the set, ignoring blank entries and duplicates.
func NewCountries(names []string) Countries {
	c := Countries{
		exact:  make(map[string]struct{}, len(names)),
		folded: make(map[string]string, len(names)),
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, seen := c.exact[name]; seen {
			continue
		}
		c.names = append(c.names, name)
		c.exact[name] = struct{}{}
		c.folded[strings.ToLower(name)] = name
	}
	return c
}

// IsHeader reports whether key is exactly a configured country name.
func (c Countries) IsHeader(key string) bool {
	_, ok := c.exact[strings.TrimSpace(key)]
	return ok
}

// Match resolves value to its configured spelling, ignoring case and padding.
func (c Countries) Match(value string) (string, bool) {
	name, ok := c.folded[strings.ToLower(strings.TrimSpace(value))]
	return name, ok
}

// Names returns the canonical country names in configuration order.
func (c Countries) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len reports how many countries are known.
func (c Countries) Len() int {
	return len(c.names)
}
