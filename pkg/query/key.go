package query

import (
	"net/url"
	"strings"
)

// Kind is the resource kind part of a key, e.g. "documents".
type Kind string

// Key identifies one cached read. Params is the canonical encoding of every
// parameter that affects the result, so equal parameter sets compare equal.
type Key struct {
	Kind   Kind
	ID     string
	Params string
}

// NewKey builds a key. Parameters with empty values are dropped and the rest
// are encoded in sorted order.
func NewKey(kind Kind, id string, params map[string]string) Key {
	v := url.Values{}
	for name, value := range params {
		if value == "" {
			continue
		}
		v.Set(name, value)
	}
	return Key{Kind: kind, ID: id, Params: v.Encode()}
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(string(k.Kind))
	if k.ID != "" {
		sb.WriteByte('/')
		sb.WriteString(k.ID)
	}
	if k.Params != "" {
		sb.WriteByte('?')
		sb.WriteString(k.Params)
	}
	return sb.String()
}

// Filter selects entries to invalidate.
type Filter struct {
	Kind   Kind
	ID     string // empty matches every id of Kind
	exact  bool
	params string
}

// ByKind matches every key of kind.
func ByKind(kind Kind) Filter {
	return Filter{Kind: kind}
}

// ByID matches the resource kind/id under any parameters.
func ByID(kind Kind, id string) Filter {
	return Filter{Kind: kind, ID: id}
}

// Exact matches key only.
func Exact(key Key) Filter {
	return Filter{Kind: key.Kind, ID: key.ID, exact: true, params: key.Params}
}

// Matches reports whether k is selected by f.
func (f Filter) Matches(k Key) bool {
	if f.Kind != k.Kind {
		return false
	}
	if f.exact {
		return f.ID == k.ID && f.params == k.Params
	}
	return f.ID == "" || f.ID == k.ID
}

func (f Filter) String() string {
	if f.exact {
		return Key{Kind: f.Kind, ID: f.ID, Params: f.params}.String()
	}
	if f.ID == "" {
		return string(f.Kind) + "/*"
	}
	return string(f.Kind) + "/" + f.ID
}
