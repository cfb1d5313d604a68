package deb

import (
	"fmt"
	"strings"
)

// Field is one "Key: value" entry of a control paragraph. Value keeps the
// continuation lines of folded and multiline fields, joined with "\n".
type Field struct {
	Key   string
	Value string
}

// Paragraph is a deb822 paragraph with its fields in file order.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#syntax-of-control-files
type Paragraph struct {
	Fields []Field
}

// Get returns the value of the named field, matched case-insensitively.
func (p *Paragraph) Get(key string) string {
	for _, f := range p.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether the named field is present.
func (p *Paragraph) Has(key string) bool {
	for _, f := range p.Fields {
		if strings.EqualFold(f.Key, key) {
			return true
		}
	}
	return false
}

// Without returns a copy of the paragraph with the named fields removed.
func (p *Paragraph) Without(keys ...ControlField) *Paragraph {
	out := &Paragraph{Fields: make([]Field, 0, len(p.Fields))}
	for _, f := range p.Fields {
		drop := false
		for _, k := range keys {
			if strings.EqualFold(f.Key, string(k)) {
				drop = true
				break
			}
		}
		if !drop {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}

// String serializes the paragraph back to control file syntax, ending with a newline.
func (p *Paragraph) String() string {
	var b strings.Builder
	for _, f := range p.Fields {
		lines := strings.Split(f.Value, "\n")
		if lines[0] == "" {
			fmt.Fprintf(&b, "%s:\n", f.Key)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", f.Key, lines[0])
		}
		for _, line := range lines[1:] {
			// Continuation lines must start with a space; empty ones are written as " .".
			switch {
			case strings.TrimSpace(line) == "":
				b.WriteString(" .\n")
			case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
				fmt.Fprintf(&b, "%s\n", line)
			default:
				fmt.Fprintf(&b, " %s\n", line)
			}
		}
	}
	return b.String()
}

// ParseControl parses every paragraph found in content. Paragraphs are
// separated by blank lines; comment lines starting with '#' are skipped.
func ParseControl(content string) ([]*Paragraph, error) {
	var paragraphs []*Paragraph
	var current *Paragraph

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.TrimSpace(line) == "":
			if current != nil {
				paragraphs = append(paragraphs, current)
				current = nil
			}
		case strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			if current == nil || len(current.Fields) == 0 {
				return nil, fmt.Errorf("line %d: continuation line without a field", i+1)
			}
			last := &current.Fields[len(current.Fields)-1]
			last.Value += "\n" + line
		default:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: expected \"Key: value\", got %q", i+1, line)
			}
			if current == nil {
				current = &Paragraph{}
			}
			current.Fields = append(current.Fields, Field{
				Key:   strings.TrimSpace(key),
				Value: strings.TrimSpace(value),
			})
		}
	}
	if current != nil {
		paragraphs = append(paragraphs, current)
	}
	return paragraphs, nil
}

// splitList splits a comma-separated string into a slice of strings, trimming whitespace from each element.
// It returns nil if the input string is empty.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var res []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

// Relations returns the package names a relationship field refers to, with
// alternatives expanded and version or architecture qualifiers dropped.
// For "a (>= 1) | b:any, c" it returns [a b c].
func (p *Paragraph) Relations(field ControlField) []string {
	var names []string
	for _, item := range splitList(strings.ReplaceAll(p.Get(string(field)), "\n", " ")) {
		for _, alt := range strings.Split(item, "|") {
			name := strings.TrimSpace(alt)
			if i := strings.IndexAny(name, " (["); i >= 0 {
				name = name[:i]
			}
			name, _, _ = strings.Cut(name, ":")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
