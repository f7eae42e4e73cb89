// SPDX-License-Identifier: Apache-2.0

package value

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// ErrUnknownFormat indicates a format name or file extension with no codec.
var ErrUnknownFormat = errors.New("unknown format")

// Codec converts between serialized documents and Values.
type Codec interface {
	// Name is the short format name, such as "json".
	Name() string
	// Decode parses one document.
	Decode(data []byte) (Value, error)
	// Encode serializes v.
	Encode(v Value) ([]byte, error)
}

var (
	// JSON reads and writes JSON, keeping object key order. Output is indented by two spaces.
	JSON Codec = jsonCodec{}
	// YAML reads and writes YAML, keeping mapping key order.
	YAML Codec = yamlCodec{}
	// TOML reads and writes TOML. The root must be an object; keys are read in sorted order.
	TOML Codec = tomlCodec{}
)

// CodecFor returns the codec for a format name ("json", "yaml", "yml" or "toml").
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// CodecForFile returns the codec matching the extension of file.
func CodecForFile(file string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, file)
	}
	return CodecFor(ext)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after top-level JSON value")
	}
	return v, nil
}

func (jsonCodec) Encode(v Value) ([]byte, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func readJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				child, err := readJSON(dec)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: child})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Object(fields...), nil
		case '[':
			var items []Value
			for dec.More() {
				child, err := readJSON(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: ArrayKind, arr: items}, nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// MarshalJSON encodes v compactly with object keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	if err := writeJSON(&b, v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON document into v, keeping object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := JSON.Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func writeJSON(b *bytes.Buffer, v Value) error {
	switch v.kind {
	case NullKind:
		b.WriteString("null")
	case BoolKind:
		b.WriteString(v.Text())
	case NumberKind:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("number %v has no JSON encoding", v.n)
		}
		b.WriteString(v.Text())
	case StringKind:
		b.WriteString(quote(v.s))
	case ArrayKind:
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeJSON(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case ObjectKind:
		b.WriteByte('{')
		for i, f := range v.Fields() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(f.Key))
			b.WriteByte(':')
			if err := writeJSON(b, f.Value); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Decode(data []byte) (Value, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return Value{}, err
	}
	return From(doc)
}

func (yamlCodec) Encode(v Value) ([]byte, error) {
	return yaml.Marshal(v.ordered())
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (tomlCodec) Decode(data []byte) (Value, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Value{}, err
	}
	if doc == nil {
		return EmptyObject(), nil
	}
	return From(doc)
}

func (tomlCodec) Encode(v Value) ([]byte, error) {
	if v.Kind() != ObjectKind {
		return nil, fmt.Errorf("toml: root must be an object, got %s", v.Kind())
	}
	return toml.Marshal(v.Interface())
}
