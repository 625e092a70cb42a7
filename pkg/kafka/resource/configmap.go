package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// ConfigMap is a string to string mapping that remembers insertion order.
// Order only matters for serialization; Equal ignores it.
// The zero value is an empty map ready to use.
type ConfigMap struct {
	keys   []string
	values map[string]string
}

// NewConfigMap builds a ConfigMap from alternating key, value pairs.
func NewConfigMap(kv ...string) ConfigMap {
	var m ConfigMap
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set inserts or overwrites key. Overwriting keeps the original position.
func (m *ConfigMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m ConfigMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m ConfigMap) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m ConfigMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Map returns an unordered copy.
func (m ConfigMap) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	maps.Copy(out, m.values)
	return out
}

func (m ConfigMap) Clone() ConfigMap {
	var c ConfigMap
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

// Equal compares contents regardless of order.
func (m ConfigMap) Equal(o ConfigMap) bool {
	if len(m.values) != len(o.values) {
		return false
	}
	for k, v := range m.values {
		if ov, ok := o.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (m ConfigMap) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.values[k]},
		)
	}
	return n, nil
}

// decodeConfigMap reads a mapping of string keys to string values. Values
// must be strings; a null node yields an empty map.
func decodeConfigMap(path string, n *yaml.Node, out *ConfigMap) error {
	*out = ConfigMap{}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return nodeError(path, n, fmt.Errorf("expected a mapping, got %s", nodeKind(n)))
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		var k, v string
		if err := str(path, key, &k); err != nil {
			return err
		}
		if _, dup := out.Get(k); dup {
			return nodeError(path+"."+k, key, errors.New("duplicate key"))
		}
		if err := str(path+"."+k, value, &v); err != nil {
			return err
		}
		out.Set(k, v)
	}
	return nil
}

func (m ConfigMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *ConfigMap) UnmarshalJSON(data []byte) error {
	*m = ConfigMap{}
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("config: expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("config.%s: %w", key, err)
		}
		if _, dup := m.Get(key); dup {
			return fmt.Errorf("config.%s: duplicate key", key)
		}
		m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
