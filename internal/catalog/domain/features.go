package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type FeatureInputKind int

const (
	FeatureInputText FeatureInputKind = iota + 1
	FeatureInputObject
)

// FeatureInput accepts both legacy feature shapes: a bare string or an
// object carrying one of text/name/title/feature and an optional
// included/enabled flag.
type FeatureInput struct {
	Kind FeatureInputKind

	Text string

	Object FeatureObject
}

type FeatureObject struct {
	Text     string `json:"text"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Feature  string `json:"feature"`
	Included *bool  `json:"included"`
	Enabled  *bool  `json:"enabled"`
}

func TextFeature(text string) FeatureInput {
	return FeatureInput{Kind: FeatureInputText, Text: text}
}

func ObjectFeature(obj FeatureObject) FeatureInput {
	return FeatureInput{Kind: FeatureInputObject, Object: obj}
}

func (f *FeatureInput) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = FeatureInput{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*f = TextFeature(text)
		return nil
	case '{':
		var obj FeatureObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*f = ObjectFeature(obj)
		return nil
	default:
		return errors.New("feature must be a string or an object")
	}
}

func (f FeatureInput) MarshalJSON() ([]byte, error) {
	feature, ok := f.Normalize()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(feature)
}

// Normalize maps the input to a canonical Feature. ok is false when the
// input carries no text.
func (f FeatureInput) Normalize() (Feature, bool) {
	switch f.Kind {
	case FeatureInputText:
		text := strings.TrimSpace(f.Text)
		if text == "" {
			return Feature{}, false
		}
		return Feature{Text: text, Included: true}, true
	case FeatureInputObject:
		text := firstNonEmpty(f.Object.Text, f.Object.Name, f.Object.Title, f.Object.Feature)
		if text == "" {
			return Feature{}, false
		}
		included := true
		switch {
		case f.Object.Included != nil:
			included = *f.Object.Included
		case f.Object.Enabled != nil:
			included = *f.Object.Enabled
		}
		return Feature{Text: text, Included: included}, true
	default:
		return Feature{}, false
	}
}

func NormalizeFeatures(inputs []FeatureInput) []Feature {
	out := make([]Feature, 0, len(inputs))
	for _, input := range inputs {
		if feature, ok := input.Normalize(); ok {
			out = append(out, feature)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
