package model

// Format names used by the standard property registry.
const (
	FormatTiny = "tiny"
	FormatToon = "toon"
)

// StandardProperty is a well-known metadata key with per-format spellings.
type StandardProperty struct {
	ID    string
	names map[string]string
}

// Name returns the spelling of p in format, or "" if the format has none.
func (p *StandardProperty) Name(format string) string {
	return p.names[format]
}

var (
	NextIntermediaryClass = &StandardProperty{
		ID:    "next-intermediary-class",
		names: map[string]string{FormatTiny: "next-intermediary-class", FormatToon: "nextIntermediaryClass"},
	}
	NextIntermediaryField = &StandardProperty{
		ID:    "next-intermediary-field",
		names: map[string]string{FormatTiny: "next-intermediary-field", FormatToon: "nextIntermediaryField"},
	}
	NextIntermediaryMethod = &StandardProperty{
		ID:    "next-intermediary-method",
		names: map[string]string{FormatTiny: "next-intermediary-method", FormatToon: "nextIntermediaryMethod"},
	}
	MissingLvtIndices = &StandardProperty{
		ID:    "missing-lvt-indices",
		names: map[string]string{FormatTiny: "missing-lvt-indices", FormatToon: "missingLvtIndices"},
	}
	EscapedNames = &StandardProperty{
		ID:    "escaped-names",
		names: map[string]string{FormatTiny: "escaped-names", FormatToon: "escapedNames"},
	}
)

// StandardProperties lists every registered standard property.
var StandardProperties = []*StandardProperty{
	NextIntermediaryClass,
	NextIntermediaryField,
	NextIntermediaryMethod,
	MissingLvtIndices,
	EscapedNames,
}

// LookupProperty resolves a format-specific key to its standard property.
func LookupProperty(format, key string) (*StandardProperty, bool) {
	for _, p := range StandardProperties {
		if n, ok := p.names[format]; ok && n == key {
			return p, true
		}
	}
	return nil, false
}

// TranslateKey converts a metadata key spelled for format from into the
// spelling used by format to. Keys that are not standard are returned as is.
func TranslateKey(from, to, key string) string {
	p, ok := LookupProperty(from, key)
	if !ok {
		return key
	}
	if n := p.Name(to); n != "" {
		return n
	}
	return key
}
