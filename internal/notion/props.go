package notion

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind is the declared type of a page property.
type Kind int

const (
	KindUnknown Kind = iota
	KindTitle
	KindRichText
	KindSelect
	KindStatus
	KindMultiSelect
	KindDate
	KindRelation
	KindPeople
)

var kindTags = map[string]Kind{
	"title":        KindTitle,
	"rich_text":    KindRichText,
	"select":       KindSelect,
	"status":       KindStatus,
	"multi_select": KindMultiSelect,
	"date":         KindDate,
	"relation":     KindRelation,
	"people":       KindPeople,
}

// ParseKind maps a property "type" tag to a Kind.
func ParseKind(tag string) Kind {
	if k, ok := kindTags[tag]; ok {
		return k
	}
	return KindUnknown
}

// String returns the API tag for k.
func (k Kind) String() string {
	for tag, kk := range kindTags {
		if kk == k {
			return tag
		}
	}
	return "unknown"
}

// DateRange is the value of a date property.
type DateRange struct {
	Start string
	End   string
}

// Value is a decoded property. Text holds the scalar form for every kind
// except KindDate, whose value is in Date.
type Value struct {
	Kind Kind
	Text string
	Date DateRange
}

// Record is one page returned by a database query, kept as raw JSON so that
// a malformed property never prevents decoding the others.
type Record struct {
	ID  string
	raw gjson.Result
}

// NewRecord wraps a raw page object.
func NewRecord(raw []byte) Record {
	res := gjson.ParseBytes(raw)
	return Record{ID: res.Get("id").String(), raw: res}
}

func recordFromResult(res gjson.Result) Record {
	return Record{ID: res.Get("id").String(), raw: res}
}

// Raw returns the page JSON.
func (r Record) Raw() string {
	return r.raw.Raw
}

// Property is a single named property of a record.
type Property struct {
	Name string
	Kind Kind
	Tag  string
	raw  gjson.Result
}

// Property returns the first property matching one of names. Each candidate
// is tried exactly first, then case-insensitively, before moving on to the
// next candidate. Keys are scanned in document order, so the result is stable
// when several keys differ only by case.
func (r Record) Property(names ...string) (Property, error) {
	props := r.raw.Get("properties")
	if !props.IsObject() {
		return Property{}, ErrNoProperties
	}
	for _, name := range names {
		if p, ok := findProperty(props, func(key string) bool { return key == name }); ok {
			return p, nil
		}
		if p, ok := findProperty(props, func(key string) bool { return strings.EqualFold(key, name) }); ok {
			return p, nil
		}
	}
	return Property{}, fmt.Errorf("%w: %s", ErrPropertyMissing, strings.Join(names, "|"))
}

func findProperty(props gjson.Result, match func(key string) bool) (Property, bool) {
	var (
		found Property
		ok    bool
	)
	props.ForEach(func(key, value gjson.Result) bool {
		if match(key.String()) {
			found, ok = newProperty(key.String(), value), true
			return false
		}
		return true
	})
	return found, ok
}

func newProperty(name string, v gjson.Result) Property {
	tag := v.Get("type").String()
	return Property{Name: name, Kind: ParseKind(tag), Tag: tag, raw: v}
}

// Decode applies the decode rule for the property's kind.
func (p Property) Decode() (Value, error) {
	val := Value{Kind: p.Kind}
	body := p.raw.Get(p.Tag)
	if p.Tag == "" || !body.Exists() {
		return val, fmt.Errorf("%w: %s has no %q value", ErrMalformed, p.Name, p.Tag)
	}

	switch p.Kind {
	case KindTitle, KindRichText:
		if body.Type == gjson.Null {
			return val, nil
		}
		if !body.IsArray() {
			return val, fmt.Errorf("%w: %s is not a text array", ErrMalformed, p.Name)
		}
		val.Text = body.Get("0.plain_text").String()
		return val, nil

	case KindSelect, KindStatus:
		if body.Type == gjson.Null {
			return val, fmt.Errorf("%w: %s", ErrEmpty, p.Name)
		}
		if !body.IsObject() {
			return val, fmt.Errorf("%w: %s is not an option", ErrMalformed, p.Name)
		}
		val.Text = body.Get("name").String()
		return val, nil

	case KindMultiSelect:
		if body.Type == gjson.Null {
			return val, nil
		}
		if !body.IsArray() {
			return val, fmt.Errorf("%w: %s is not an option list", ErrMalformed, p.Name)
		}
		var names []string
		for _, opt := range body.Array() {
			if n := opt.Get("name").String(); n != "" {
				names = append(names, n)
			}
		}
		val.Text = strings.Join(names, ", ")
		return val, nil

	case KindPeople:
		if body.Type == gjson.Null {
			return val, nil
		}
		if !body.IsArray() {
			return val, fmt.Errorf("%w: %s is not a people list", ErrMalformed, p.Name)
		}
		var names []string
		for _, person := range body.Array() {
			n := person.Get("name").String()
			if n == "" {
				n = "Usuário"
			}
			names = append(names, n)
		}
		val.Text = strings.Join(names, ", ")
		return val, nil

	case KindDate:
		if body.Type == gjson.Null {
			return val, fmt.Errorf("%w: %s", ErrEmpty, p.Name)
		}
		if !body.IsObject() {
			return val, fmt.Errorf("%w: %s is not a date", ErrMalformed, p.Name)
		}
		val.Date = DateRange{
			Start: body.Get("start").String(),
			End:   body.Get("end").String(),
		}
		val.Text = val.Date.Start
		return val, nil

	case KindRelation:
		if !body.IsArray() {
			if body.Type == gjson.Null {
				return val, fmt.Errorf("%w: %s", ErrEmpty, p.Name)
			}
			return val, fmt.Errorf("%w: %s is not a relation list", ErrMalformed, p.Name)
		}
		first := body.Get("0.id")
		if !first.Exists() {
			return val, fmt.Errorf("%w: %s", ErrEmpty, p.Name)
		}
		val.Text = first.String()
		return val, nil
	}

	return val, fmt.Errorf("%w: %s (%s)", ErrUnsupportedKind, p.Name, p.Tag)
}

// Text decodes a textual property: title, rich text, select, status,
// multi-select or people.
func (p Property) Text() (string, error) {
	switch p.Kind {
	case KindTitle, KindRichText, KindSelect, KindStatus, KindMultiSelect, KindPeople:
	default:
		return "", fmt.Errorf("%w: %s is %s, not text", ErrKindMismatch, p.Name, p.Kind)
	}
	v, err := p.Decode()
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// Date decodes a date property.
func (p Property) Date() (DateRange, error) {
	if p.Kind != KindDate {
		return DateRange{}, fmt.Errorf("%w: %s is %s, not date", ErrKindMismatch, p.Name, p.Kind)
	}
	v, err := p.Decode()
	if err != nil {
		return DateRange{}, err
	}
	return v.Date, nil
}

// Relation decodes the first linked page id of a relation property.
func (p Property) Relation() (string, error) {
	if p.Kind != KindRelation {
		return "", fmt.Errorf("%w: %s is %s, not relation", ErrKindMismatch, p.Name, p.Kind)
	}
	v, err := p.Decode()
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// Text looks up names and decodes the first match as text.
func (r Record) Text(names ...string) (string, error) {
	p, err := r.Property(names...)
	if err != nil {
		return "", err
	}
	return p.Text()
}

// TextOr returns the decoded text of the first matching property, or def
// when the property is missing, malformed or blank.
func (r Record) TextOr(def string, names ...string) string {
	s, err := r.Text(names...)
	if err != nil || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// DateOr returns the first matching date property with a start date.
// Candidates that are absent, null or of another kind are skipped.
func (r Record) DateOr(names ...string) (DateRange, bool) {
	for _, name := range names {
		p, err := r.Property(name)
		if err != nil {
			continue
		}
		d, err := p.Date()
		if err != nil || d.Start == "" {
			continue
		}
		return d, true
	}
	return DateRange{}, false
}

// RelationOr returns the first linked id of the first matching relation
// property that has one.
func (r Record) RelationOr(names ...string) (string, bool) {
	for _, name := range names {
		p, err := r.Property(name)
		if err != nil {
			continue
		}
		id, err := p.Relation()
		if err != nil || id == "" {
			continue
		}
		return id, true
	}
	return "", false
}

// Kinds returns the declared kind of every property on the record.
func (r Record) Kinds() map[string]Kind {
	out := make(map[string]Kind)
	r.raw.Get("properties").ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = ParseKind(value.Get("type").String())
		return true
	})
	return out
}
