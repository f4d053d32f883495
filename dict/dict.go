// Package dict implements the flat text dictionary used to transport
// network configurations: one "key=value" pair per line, with value bytes
// escaped so they can carry arbitrary binary data.
package dict

import (
	"strconv"
)

// DefaultCapacity bounds a dictionary that carries a maximum size network
// configuration with all credential blobs attached.
const DefaultCapacity = 2 * 1024 * 1024

// Dictionary is a bounded, ordered map from short text keys to byte string
// values. Pairs are stored in insertion order. Writers reject duplicate
// keys; readers take the first occurrence of a key.
type Dictionary struct {
	b     []byte
	limit int
}

// New returns an empty Dictionary bounded to capacity bytes. A capacity of
// zero or less means DefaultCapacity.
func New(capacity int) *Dictionary {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Dictionary{limit: capacity}
}

// FromBytes wraps an already serialized dictionary for reading.
func FromBytes(data []byte) *Dictionary {
	return &Dictionary{b: data, limit: DefaultCapacity}
}

// Clear empties the dictionary.
func (d *Dictionary) Clear() {
	d.b = d.b[:0]
}

// Bytes returns the serialized form.
func (d *Dictionary) Bytes() []byte {
	return d.b
}

// Len returns the serialized length in bytes.
func (d *Dictionary) Len() int {
	return len(d.b)
}

func validKey(key string) bool {
	if len(key) == 0 {
		return false
	}
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case 0, '\r', '\n', '=', '\\':
			return false
		}
	}
	return true
}

func appendEscaped(out []byte, value []byte) []byte {
	for _, c := range value {
		switch c {
		case 0:
			out = append(out, '\\', '0')
		case '\r':
			out = append(out, '\\', 'r')
		case '\n':
			out = append(out, '\\', 'n')
		case '\\':
			out = append(out, '\\', '\\')
		case '=':
			out = append(out, '\\', 'e')
		default:
			out = append(out, c)
		}
	}
	return out
}

func unescape(out []byte, value []byte) []byte {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(value) {
			break
		}
		switch value[i] {
		case '0':
			out = append(out, 0)
		case 'r':
			out = append(out, '\r')
		case 'n':
			out = append(out, '\n')
		case 'e':
			out = append(out, '=')
		default:
			out = append(out, value[i])
		}
	}
	return out
}

// Add appends a key/value pair. It returns false if the key is invalid or
// already present, or if the pair would overflow the capacity.
func (d *Dictionary) Add(key string, value []byte) bool {
	if !validKey(key) {
		return false
	}
	if _, ok := d.find(key); ok {
		return false
	}
	line := make([]byte, 0, len(key)+1+2*len(value)+1)
	line = append(line, key...)
	line = append(line, '=')
	line = appendEscaped(line, value)
	line = append(line, '\n')
	if len(d.b)+len(line) > d.limit {
		return false
	}
	d.b = append(d.b, line...)
	return true
}

// AddString adds a text value.
func (d *Dictionary) AddString(key, value string) bool {
	return d.Add(key, []byte(value))
}

// AddUint64 adds an integer as bare hex ASCII.
func (d *Dictionary) AddUint64(key string, value uint64) bool {
	return d.Add(key, strconv.AppendUint(nil, value, 16))
}

// AddBool adds a boolean as "1" or "0".
func (d *Dictionary) AddBool(key string, value bool) bool {
	if value {
		return d.Add(key, []byte{'1'})
	}
	return d.Add(key, []byte{'0'})
}

// find returns the raw (still escaped) value of the first line with the key.
func (d *Dictionary) find(key string) ([]byte, bool) {
	b := d.b
	for len(b) > 0 {
		eol := len(b)
		for i, c := range b {
			if c == '\n' {
				eol = i
				break
			}
		}
		line := b[:eol]
		if eol < len(b) {
			b = b[eol+1:]
		} else {
			b = nil
		}
		eq := -1
		for i, c := range line {
			if c == '=' {
				eq = i
				break
			}
		}
		if eq != len(key) {
			continue
		}
		if string(line[:eq]) == key {
			return line[eq+1:], true
		}
	}
	return nil, false
}

// Get returns the unescaped value for key, or ok == false if absent.
func (d *Dictionary) Get(key string) ([]byte, bool) {
	raw, ok := d.find(key)
	if !ok {
		return nil, false
	}
	return unescape(nil, raw), true
}

// GetString returns the value for key as a string.
func (d *Dictionary) GetString(key, dflt string) string {
	v, ok := d.Get(key)
	if !ok {
		return dflt
	}
	return string(v)
}

// GetUint64 parses the value for key as hex ASCII.
func (d *Dictionary) GetUint64(key string, dflt uint64) uint64 {
	v, ok := d.Get(key)
	if !ok || len(v) == 0 {
		return dflt
	}
	u, err := strconv.ParseUint(string(v), 16, 64)
	if err != nil {
		return dflt
	}
	return u
}

// GetBool parses the value for key as a boolean. Values beginning with
// '1', 't' or 'y' are true; everything else is false.
func (d *Dictionary) GetBool(key string, dflt bool) bool {
	v, ok := d.Get(key)
	if !ok || len(v) == 0 {
		return dflt
	}
	switch v[0] {
	case '1', 't', 'T', 'y', 'Y':
		return true
	}
	return false
}
