// Package catalog converts a list of measured subjects into per-subject
// datasets and the manifest the playback side uses to list them.
package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Subject is one entry of the conversion list.
type Subject struct {
	ID    string
	Label string
}

// DefaultSubjects is the CIPIC selection shipped with the app.
func DefaultSubjects() []Subject {
	return []Subject{
		{ID: "003", Label: "Subject 003"},
		{ID: "008", Label: "Subject 008"},
		{ID: "021", Label: "KEMAR Large Pinna (021)"},
		{ID: "040", Label: "Subject 040"},
		{ID: "165", Label: "KEMAR Small Pinna (165)"},
	}
}

// DefaultSubjectSpecs renders DefaultSubjects in the "id=label" form
// accepted by ParseSubjects.
func DefaultSubjectSpecs() []string {
	subs := DefaultSubjects()
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID + "=" + s.Label
	}
	return out
}

// ParseSubjects parses "id=label" items. A bare "id" gets the label
// "Subject <id>". Duplicate ids are rejected; order is kept.
func ParseSubjects(specs []string) ([]Subject, error) {
	out := make([]Subject, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, item := range specs {
		id, label, _ := strings.Cut(item, "=")
		id = strings.TrimSpace(id)
		label = NormalizeLabel(label)
		if id == "" {
			return nil, fmt.Errorf("subject %q: empty id", item)
		}
		if Slug(id) != id {
			return nil, fmt.Errorf("subject %q: id must be a plain file-name token", item)
		}
		if seen[id] {
			return nil, fmt.Errorf("subject %q: duplicate id", id)
		}
		seen[id] = true
		if label == "" {
			label = "Subject " + id
		}
		out = append(out, Subject{ID: id, Label: label})
	}
	return out, nil
}

// NormalizeLabel trims a display label and puts it in NFC form so equal
// labels compare equal however they were typed.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Slug reduces s to an ASCII file-name token: accents are stripped,
// anything outside [A-Za-z0-9._-] becomes an underscore, and runs of
// underscores collapse.
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	lastWasUnderscore := false
	for _, r := range decomposed {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'):
			b.WriteRune(r)
			lastWasUnderscore = false
		case !lastWasUnderscore:
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_.")
}

// FileName is the dataset file written for a subject.
func (s Subject) FileName() string {
	return Slug(s.ID) + ".json"
}
