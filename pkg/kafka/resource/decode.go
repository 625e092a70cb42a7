package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrDeserialize = errors.New("deserialize failure")

// DeserializeError reports a payload that does not fit the closed schema of
// its resource kind. Field is empty when the failure is not tied to a field
// (syntax errors, empty documents). Line and Column are 1-based, 0 if unknown.
type DeserializeError struct {
	Field  string
	Line   int
	Column int
	Err    error
}

func (e *DeserializeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", ErrDeserialize, e.Err)
	}
	return fmt.Sprintf("%s: field %q: %v", ErrDeserialize, e.Field, e.Err)
}

func (e *DeserializeError) Is(target error) bool { return target == ErrDeserialize }

func (e *DeserializeError) Unwrap() error { return e.Err }

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// parseDocument parses data into the root mapping node of a single YAML document.
func parseDocument(data []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DeserializeError{Err: errors.New("empty document")}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc yaml.Node
	if err := dec.Decode(&doc); errors.Is(err, io.EOF) {
		return nil, &DeserializeError{Err: errors.New("empty document")}
	} else if err != nil {
		return nil, syntaxError(err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DeserializeError{Err: errors.New("empty document")}
	}

	// a trailing "---" with nothing after it is tolerated, any other
	// document is not
	for {
		var extra yaml.Node
		err := dec.Decode(&extra)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, syntaxError(err)
		}
		if !emptyDocument(&extra) {
			at := extra.Content[0]
			return nil, &DeserializeError{Line: at.Line, Column: at.Column, Err: errors.New("multiple documents in one payload")}
		}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nodeError("", root, fmt.Errorf("expected a mapping, got %s", nodeKind(root)))
	}
	return root, nil
}

func emptyDocument(n *yaml.Node) bool {
	if len(n.Content) == 0 {
		return true
	}
	c := n.Content[0]
	return len(n.Content) == 1 && c.Kind == yaml.ScalarNode && c.ShortTag() == "!!null" && c.Value == ""
}

func syntaxError(err error) *DeserializeError {
	de := &DeserializeError{Err: err}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		de.Line, _ = strconv.Atoi(m[1])
	}
	return de
}

// field describes one key of a closed mapping.
type field struct {
	name     string
	required bool
	decode   func(path string, n *yaml.Node) error
}

// decodeFields walks a mapping node, dispatching every key to its field
// decoder. Unknown and duplicate keys are rejected, missing required keys are
// reported by name. prefix is prepended to field names in errors.
func decodeFields(prefix string, n *yaml.Node, fields []field) error {
	if n.Kind != yaml.MappingNode {
		return nodeError(strings.TrimSuffix(prefix, "."), n, fmt.Errorf("expected a mapping, got %s", nodeKind(n)))
	}

	seen := make(map[string]bool, len(fields))
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		name := key.Value

		var f *field
		for j := range fields {
			if fields[j].name == name {
				f = &fields[j]
				break
			}
		}
		if f == nil {
			return nodeError(prefix+name, key, errors.New("unknown field"))
		}
		if seen[name] {
			return nodeError(prefix+name, key, errors.New("duplicate field"))
		}
		seen[name] = true

		if err := f.decode(prefix+name, value); err != nil {
			return err
		}
	}

	for _, f := range fields {
		if f.required && !seen[f.name] {
			return nodeError(prefix+f.name, n, errors.New("missing required field"))
		}
	}
	return nil
}

// scalar decodes a scalar node into out, reporting type errors against path.
func scalar(path string, n *yaml.Node, out any) error {
	if n.Kind != yaml.ScalarNode {
		return nodeError(path, n, fmt.Errorf("expected a scalar, got %s", nodeKind(n)))
	}
	if err := n.Decode(out); err != nil {
		var te *yaml.TypeError
		if errors.As(err, &te) && len(te.Errors) > 0 {
			return nodeError(path, n, fmt.Errorf("invalid value %q", n.Value))
		}
		return nodeError(path, n, err)
	}
	return nil
}

// str decodes a scalar that must be tagged as a string.
func str(path string, n *yaml.Node, out *string) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return nodeError(path, n, fmt.Errorf("expected a string, got %s", describe(n)))
	}
	*out = n.Value
	return nil
}

// optionalFloat decodes a nullable number.
func optionalFloat(path string, n *yaml.Node, out **float64) error {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		*out = nil
		return nil
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
	default:
		return nodeError(path, n, fmt.Errorf("expected a number, got %s", describe(n)))
	}
	var v float64
	if err := scalar(path, n, &v); err != nil {
		return err
	}
	if err := checkRate(v); err != nil {
		return nodeError(path, n, err)
	}
	*out = &v
	return nil
}

// checkRate accepts finite, non-negative rates.
func checkRate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("rate must be a finite number, got %v", v)
	}
	if v < 0 {
		return fmt.Errorf("rate must not be negative, got %v", v)
	}
	return nil
}

func nodeError(path string, n *yaml.Node, err error) *DeserializeError {
	return &DeserializeError{Field: path, Line: n.Line, Column: n.Column, Err: err}
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "nothing"
}

func describe(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return fmt.Sprintf("%s %q", strings.TrimPrefix(n.ShortTag(), "!!"), n.Value)
	}
	return nodeKind(n)
}

// encode renders v as 2-space indented YAML.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
