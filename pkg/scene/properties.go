package scene

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/df07/go-light-transport/pkg/core"
)

// Properties is the parsed key/value scene dialect: dotted keys mapping
// to whitespace-separated value lists
type Properties struct {
	values map[string][]string
}

// NewProperties creates an empty property set
func NewProperties() *Properties {
	return &Properties{values: make(map[string][]string)}
}

// ParseProperties reads "key = value..." lines; # starts a comment
func ParseProperties(r io.Reader) (*Properties, error) {
	props := NewProperties()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNo, line)
		}

		key := strings.TrimSpace(line[:eq])
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", lineNo)
		}
		value := strings.TrimSpace(line[eq+1:])
		props.values[key] = splitValues(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return props, nil
}

// ParsePropertiesString parses an in-memory property text
func ParsePropertiesString(s string) (*Properties, error) {
	return ParseProperties(strings.NewReader(s))
}

// splitValues tokenizes a value list honoring double quotes
func splitValues(s string) []string {
	var out []string
	var current strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// Set assigns a value list to a key
func (p *Properties) Set(key string, values ...string) {
	p.values[key] = values
}

// Has reports whether a key exists
func (p *Properties) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns all keys with the given prefix, sorted
func (p *Properties) Keys(prefix string) []string {
	var out []string
	for k := range p.values {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Names extracts the distinct <name> segments of keys shaped
// prefix.<name>.suffix
func (p *Properties) Names(prefix string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range p.Keys(prefix) {
		rest := strings.TrimPrefix(key, prefix)
		rest = strings.TrimPrefix(rest, ".")
		if i := strings.Index(rest, "."); i > 0 {
			rest = rest[:i]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out
}

// GetString returns the first value of a key or the default
func (p *Properties) GetString(key, def string) string {
	if v, ok := p.values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return def
}

// GetStrings returns the full value list of a key
func (p *Properties) GetStrings(key string) []string {
	return p.values[key]
}

// GetFloat returns the first value parsed as float or the default
func (p *Properties) GetFloat(key string, def float64) float64 {
	if v, ok := p.values[key]; ok && len(v) > 0 {
		if f, err := strconv.ParseFloat(v[0], 64); err == nil {
			return f
		}
	}
	return def
}

// GetInt returns the first value parsed as int or the default
func (p *Properties) GetInt(key string, def int) int {
	if v, ok := p.values[key]; ok && len(v) > 0 {
		if i, err := strconv.Atoi(v[0]); err == nil {
			return i
		}
	}
	return def
}

// GetBool returns the first value parsed as bool or the default
func (p *Properties) GetBool(key string, def bool) bool {
	if v, ok := p.values[key]; ok && len(v) > 0 {
		if b, err := strconv.ParseBool(v[0]); err == nil {
			return b
		}
	}
	return def
}

// GetVec3 parses three floats or returns the default
func (p *Properties) GetVec3(key string, def core.Vec3) core.Vec3 {
	v, ok := p.values[key]
	if !ok || len(v) < 3 {
		return def
	}
	x, errX := strconv.ParseFloat(v[0], 64)
	y, errY := strconv.ParseFloat(v[1], 64)
	z, errZ := strconv.ParseFloat(v[2], 64)
	if errX != nil || errY != nil || errZ != nil {
		return def
	}
	return core.NewVec3(x, y, z)
}

// GetFloats parses every value of a key as float
func (p *Properties) GetFloats(key string) ([]float64, error) {
	v, ok := p.values[key]
	if !ok {
		return nil, fmt.Errorf("missing property %q", key)
	}
	out := make([]float64, len(v))
	for i, s := range v {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("property %q: bad float %q", key, s)
		}
		out[i] = f
	}
	return out, nil
}
