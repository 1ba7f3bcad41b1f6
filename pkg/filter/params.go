package filter

import (
	"net/url"
	"strings"
)

// Param holds the values sent for one top level query key.
//
//	name=foo              Values: [foo]
//	name[]=a&name[]=b     Values: [a b]
//	createdAt[after]=x    Sub: {after: [x]}
//	order[name]=asc       Sub: {name: [asc]}
type Param struct {
	Values   []string
	Sub      map[string][]string
	SubOrder []string
}

// First returns the first plain value
func (p *Param) First() (string, bool) {
	if p == nil || len(p.Values) == 0 {
		return "", false
	}
	return p.Values[0], true
}

// SubValue returns the first value sent under a nested key
func (p *Param) SubValue(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	values, ok := p.Sub[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Empty reports whether nothing was sent
func (p *Param) Empty() bool {
	return p == nil || (len(p.Values) == 0 && len(p.Sub) == 0)
}

func (p *Param) addSub(key, value string) {
	if p.Sub == nil {
		p.Sub = make(map[string][]string)
	}
	if _, seen := p.Sub[key]; !seen {
		p.SubOrder = append(p.SubOrder, key)
	}
	p.Sub[key] = append(p.Sub[key], value)
}

// Params are the parsed query parameters of a request, keeping the order
// in which keys were sent
type Params struct {
	keys   []string
	params map[string]*Param
}

// ParseQuery parses a raw query string with bracket notation. Malformed
// escapes are kept verbatim.
func ParseQuery(raw string) Params {
	p := Params{params: make(map[string]*Param)}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)
		if key == "" {
			continue
		}

		name, sub, nested := splitKey(key)
		param := p.param(name)
		if nested {
			param.addSub(sub, value)
			continue
		}
		param.Values = append(param.Values, value)
	}
	return p
}

// FromValues builds Params from already decoded url.Values. Key order
// follows the sorted keys of the map.
func FromValues(values url.Values) Params {
	return ParseQuery(values.Encode())
}

func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// splitKey splits "a[b][]" into name "a" and sub "b". Keys without a
// nested segment, like "a" or "a[]", are not nested.
func splitKey(key string) (name, sub string, nested bool) {
	open := strings.Index(key, "[")
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	name = key[:open]
	rest := key[open:]

	var segments []string
	for len(rest) > 0 {
		if rest[0] != '[' {
			return key, "", false
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return key, "", false
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}

	switch {
	case len(segments) == 1 && segments[0] == "":
		return name, "", false
	case segments[0] == "":
		return key, "", false
	default:
		return name, segments[0], true
	}
}

func (p *Params) param(name string) *Param {
	if existing, ok := p.params[name]; ok {
		return existing
	}
	param := &Param{}
	p.params[name] = param
	p.keys = append(p.keys, name)
	return param
}

// Get returns the values sent for a top level key
func (p Params) Get(key string) (*Param, bool) {
	param, ok := p.params[key]
	return param, ok
}

// Keys returns the top level keys in request order
func (p Params) Keys() []string {
	return p.keys
}

// Has reports whether a key was sent
func (p Params) Has(key string) bool {
	_, ok := p.params[key]
	return ok
}

// single returns params holding only one key
func single(key string, param *Param) Params {
	return Params{
		keys:   []string{key},
		params: map[string]*Param{key: param},
	}
}
