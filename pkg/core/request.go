package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Params is an insertion-ordered set of query parameters. The exchange verifies the
// signature over the query string exactly as sent, so Encode never sorts keys.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set appends key, or replaces its value in place when key is already present.
// Values are formatted with FormatValue.
func (p *Params) Set(key string, value any) *Params {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = FormatValue(value)
	return p
}

// Get returns the formatted value of key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Del removes key and keeps the order of the remaining keys.
func (p *Params) Del(key string) *Params {
	if _, ok := p.values[key]; !ok {
		return p
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return p
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns an independent copy. A nil receiver yields an empty set.
func (p *Params) Clone() *Params {
	c := NewParams()
	if p == nil {
		return c
	}
	c.keys = append(c.keys, p.keys...)
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}

// Encode renders the parameters as a query string in insertion order.
// Keys and values are escaped with url.QueryEscape, so spaces become '+'.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (p *Params) String() string {
	return p.Encode()
}

// FormatValue renders a parameter value the way the exchange expects it on the wire.
// Floats use the shortest non-exponent form, decimals are rendered without exponent.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case apd.Decimal:
		return x.Text('f')
	case *apd.Decimal:
		if x == nil {
			return ""
		}
		return x.Text('f')
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Request describes one REST call before signing.
type Request struct {
	Operation Operation
	Method    string
	Path      string
	Params    *Params
	Signed    bool
	Weight    int
}

// NewRequest creates a request for op using its endpoint definition.
func NewRequest(op Operation) *Request {
	ep := op.Endpoint()
	return &Request{
		Operation: op,
		Method:    ep.Method,
		Path:      ep.Path,
		Params:    NewParams(),
		Signed:    ep.Signed,
		Weight:    ep.Weight,
	}
}

// Set adds a query parameter and returns the request for chaining.
func (r *Request) Set(key string, value any) *Request {
	r.Params.Set(key, value)
	return r
}

// SetWeight overrides the endpoint weight and returns the request for chaining.
func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}
