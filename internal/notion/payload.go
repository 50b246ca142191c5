package notion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
)

// Notion caps a single rich text fragment at 2000 characters.
const maxFragment = 2000

// TextProperty builds a property bag that overwrites a title or rich text
// property with value.
func TextProperty(kind Kind, name, value string) (json.RawMessage, error) {
	if kind != KindTitle && kind != KindRichText {
		return nil, fmt.Errorf("%w: %s is not a text kind", ErrKindMismatch, kind)
	}
	rich, err := richText(value)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRawBytes([]byte(`{}`), escapeKey(name)+"."+kind.String(), rich)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s property: %w", name, err)
	}
	return out, nil
}

// OptionProperty builds a property bag that sets a select or status
// property to the option named value.
func OptionProperty(kind Kind, name, value string) (json.RawMessage, error) {
	if kind != KindSelect && kind != KindStatus {
		return nil, fmt.Errorf("%w: %s is not an option kind", ErrKindMismatch, kind)
	}
	out, err := sjson.SetBytes([]byte(`{}`), escapeKey(name)+"."+kind.String()+".name", value)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s property: %w", name, err)
	}
	return out, nil
}

// richText splits s into API-sized text fragments.
func richText(s string) ([]byte, error) {
	type text struct {
		Content string `json:"content"`
	}
	type fragment struct {
		Text text `json:"text"`
	}

	frags := []fragment{}
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(len(runes), maxFragment)
		frags = append(frags, fragment{Text: text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	out, err := json.Marshal(frags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rich text: %w", err)
	}
	return out, nil
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`)

// escapeKey makes a property name safe to use as one sjson path segment.
func escapeKey(name string) string {
	return pathEscaper.Replace(name)
}
