package uimodel

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// StringID names a display string.
type StringID int

const (
	StrUpArrow StringID = iota
	StrDownArrow
	StrNoResults
	StrKeyStats
	StrAbout
	StrClimateChange
	StrErrEmptyBody
	StrErrHTTPStatus // format verb %d receives the status code
	StrErrTimeout
	StrErrBadData
	StrErrNotFound
	StrErrUnknown
)

// ColorID names a palette entry.
type ColorID int

const (
	ColorPositive ColorID = iota
	ColorNegative
	ColorNeutral
)

// Resources looks up display strings and colors.
type Resources interface {
	String(id StringID) string
	Color(id ColorID) lipgloss.Color
}

var stringKeys = map[StringID]string{
	StrUpArrow:       "up_arrow",
	StrDownArrow:     "down_arrow",
	StrNoResults:     "no_results",
	StrKeyStats:      "key_stats",
	StrAbout:         "about",
	StrClimateChange: "climate_change",
	StrErrEmptyBody:  "error_empty_body",
	StrErrHTTPStatus: "error_http_status",
	StrErrTimeout:    "error_timeout",
	StrErrBadData:    "error_bad_data",
	StrErrNotFound:   "error_not_found",
	StrErrUnknown:    "error_unknown",
}

var colorKeys = map[ColorID]string{
	ColorPositive: "positive",
	ColorNegative: "negative",
	ColorNeutral:  "neutral",
}

var defaultStrings = map[StringID]string{
	StrUpArrow:       "▲",
	StrDownArrow:     "▼",
	StrNoResults:     "No results",
	StrKeyStats:      "Key stats",
	StrAbout:         "About",
	StrClimateChange: "Climate change score",
	StrErrEmptyBody:  "The server returned no data.",
	StrErrHTTPStatus: "The request failed (HTTP %d).",
	StrErrTimeout:    "The request timed out. Check your connection.",
	StrErrBadData:    "The server returned data that could not be read.",
	StrErrNotFound:   "That stock is not on your watchlist.",
	StrErrUnknown:    "Something went wrong.",
}

var defaultColors = map[ColorID]lipgloss.Color{
	ColorPositive: lipgloss.Color("10"),
	ColorNegative: lipgloss.Color("9"),
	ColorNeutral:  lipgloss.Color("245"),
}

type defaultResources struct{}

// DefaultResources returns the built-in English strings and ANSI palette.
func DefaultResources() Resources { return defaultResources{} }

func (defaultResources) String(id StringID) string       { return defaultStrings[id] }
func (defaultResources) Color(id ColorID) lipgloss.Color { return defaultColors[id] }

// Catalog is a Resources loaded from YAML. Entries missing from the file
// fall back to the defaults.
//
//	strings:
//	  no_results: "Keine Ergebnisse"
//	colors:
//	  positive: "#00ff00"
type Catalog struct {
	strings map[StringID]string
	colors  map[ColorID]lipgloss.Color
}

type catalogFile struct {
	Strings map[string]string `yaml:"strings"`
	Colors  map[string]string `yaml:"colors"`
}

// LoadCatalog reads a YAML string catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML string catalog. Unknown keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		strings: make(map[StringID]string, len(defaultStrings)),
		colors:  make(map[ColorID]lipgloss.Color, len(defaultColors)),
	}
	for id, v := range defaultStrings {
		c.strings[id] = v
	}
	for id, v := range defaultColors {
		c.colors[id] = v
	}

	byStringKey := make(map[string]StringID, len(stringKeys))
	for id, k := range stringKeys {
		byStringKey[k] = id
	}
	for k, v := range f.Strings {
		id, ok := byStringKey[k]
		if !ok {
			return nil, fmt.Errorf("catalog: unknown string %q", k)
		}
		c.strings[id] = v
	}

	byColorKey := make(map[string]ColorID, len(colorKeys))
	for id, k := range colorKeys {
		byColorKey[k] = id
	}
	for k, v := range f.Colors {
		id, ok := byColorKey[k]
		if !ok {
			return nil, fmt.Errorf("catalog: unknown color %q", k)
		}
		c.colors[id] = lipgloss.Color(v)
	}
	return c, nil
}

func (c *Catalog) String(id StringID) string       { return c.strings[id] }
func (c *Catalog) Color(id ColorID) lipgloss.Color { return c.colors[id] }
