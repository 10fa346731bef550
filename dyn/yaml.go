package dyn

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/postcard"
	"github.com/oy3o/postcard/schema"
)

type yamlFrame struct {
	node *yaml.Node
	// variant is the tag a newtype variant puts on its payload. Frames with
	// a variant have no node.
	variant string
	// fields is set for structs, which take a Field before each value.
	fields   bool
	hasField bool
}

// YAMLTarget builds a YAML node tree.
//
// Structs and maps become mappings, sequences and tuples become sequences,
// and unit and none become null. Enum variants carry their name as a local
// tag: a unit variant is the plain scalar name, others are the payload
// tagged !Name. A newtype variant whose payload is itself tagged falls back
// to a one-key mapping.
type YAMLTarget struct {
	stack []yamlFrame
	root  *yaml.Node
}

// NewYAMLTarget returns an empty YAMLTarget.
func NewYAMLTarget() *YAMLTarget { return &YAMLTarget{} }

// Node returns the completed tree.
func (t *YAMLTarget) Node() (*yaml.Node, error) {
	if t.root == nil || len(t.stack) > 0 {
		return nil, ErrUnbalanced
	}
	return t.root, nil
}

func localTag(tag string) bool { return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!") }

func (t *YAMLTarget) put(n *yaml.Node) error {
	for {
		if len(t.stack) == 0 {
			if t.root != nil {
				return ErrUnbalanced
			}
			t.root = n
			return nil
		}
		f := &t.stack[len(t.stack)-1]
		if f.node != nil {
			if f.fields {
				if !f.hasField {
					return ErrUnbalanced
				}
				f.hasField = false
			}
			f.node.Content = append(f.node.Content, n)
			return nil
		}
		if localTag(n.Tag) {
			n = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{scalar("!!str", f.variant), n}}
		} else {
			n.Tag = "!" + f.variant
		}
		t.stack = t.stack[:len(t.stack)-1]
	}
}

func (t *YAMLTarget) push(f yamlFrame) error {
	if t.root != nil && len(t.stack) == 0 {
		return ErrUnbalanced
	}
	if len(t.stack) > 0 {
		if top := t.stack[len(t.stack)-1]; top.fields && !top.hasField {
			return ErrUnbalanced
		}
	}
	t.stack = append(t.stack, f)
	return nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlFloat(v float64, bits int) *yaml.Node {
	switch {
	case math.IsNaN(v):
		return scalar("!!float", ".nan")
	case math.IsInf(v, 1):
		return scalar("!!float", ".inf")
	case math.IsInf(v, -1):
		return scalar("!!float", "-.inf")
	}
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return scalar("!!float", s)
}

func (t *YAMLTarget) Bool(v bool) error             { return t.put(scalar("!!bool", strconv.FormatBool(v))) }
func (t *YAMLTarget) I8(v int8) error               { return t.I64(int64(v)) }
func (t *YAMLTarget) I16(v int16) error             { return t.I64(int64(v)) }
func (t *YAMLTarget) I32(v int32) error             { return t.I64(int64(v)) }
func (t *YAMLTarget) I64(v int64) error             { return t.put(scalar("!!int", strconv.FormatInt(v, 10))) }
func (t *YAMLTarget) I128(v postcard.Int128) error  { return t.put(scalar("!!int", v.String())) }
func (t *YAMLTarget) U8(v uint8) error              { return t.U64(uint64(v)) }
func (t *YAMLTarget) U16(v uint16) error            { return t.U64(uint64(v)) }
func (t *YAMLTarget) U32(v uint32) error            { return t.U64(uint64(v)) }
func (t *YAMLTarget) U64(v uint64) error            { return t.put(scalar("!!int", strconv.FormatUint(v, 10))) }
func (t *YAMLTarget) U128(v postcard.Uint128) error { return t.put(scalar("!!int", v.String())) }
func (t *YAMLTarget) F32(v float32) error           { return t.put(yamlFloat(float64(v), 32)) }
func (t *YAMLTarget) F64(v float64) error           { return t.put(yamlFloat(v, 64)) }
func (t *YAMLTarget) Char(v rune) error             { return t.put(scalar("!!str", string(v))) }
func (t *YAMLTarget) Str(v string) error            { return t.put(scalar("!!str", v)) }
func (t *YAMLTarget) None() error                   { return t.put(scalar("!!null", "null")) }
func (t *YAMLTarget) Unit() error                   { return t.put(scalar("!!null", "null")) }
func (t *YAMLTarget) UnitStruct(string) error       { return t.put(scalar("!!null", "null")) }
func (t *YAMLTarget) Some() error                   { return nil }
func (t *YAMLTarget) NewtypeStruct(string) error    { return nil }

func (t *YAMLTarget) Bytes(v []byte) error {
	return t.put(scalar("!!binary", base64.StdEncoding.EncodeToString(v)))
}

func (t *YAMLTarget) BeginSeq(int) error {
	return t.push(yamlFrame{node: &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}})
}

func (t *YAMLTarget) BeginTuple(n int) error { return t.BeginSeq(n) }

func (t *YAMLTarget) BeginTupleStruct(_ string, n int) error { return t.BeginSeq(n) }

func (t *YAMLTarget) BeginMap(int) error {
	return t.push(yamlFrame{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}})
}

func (t *YAMLTarget) BeginStruct(string, []string) error {
	return t.push(yamlFrame{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, fields: true})
}

func (t *YAMLTarget) Field(name string) error {
	if len(t.stack) == 0 {
		return ErrUnbalanced
	}
	f := &t.stack[len(t.stack)-1]
	if !f.fields || f.hasField {
		return ErrUnbalanced
	}
	f.node.Content = append(f.node.Content, scalar("!!str", name))
	f.hasField = true
	return nil
}

func (t *YAMLTarget) UnitVariant(_ string, _ uint32, variant string) error {
	return t.put(scalar("!!str", variant))
}

func (t *YAMLTarget) NewtypeVariant(_ string, _ uint32, variant string) error {
	return t.push(yamlFrame{variant: variant})
}

func (t *YAMLTarget) BeginTupleVariant(_ string, _ uint32, variant string, _ int) error {
	return t.push(yamlFrame{node: &yaml.Node{Kind: yaml.SequenceNode, Tag: "!" + variant}})
}

func (t *YAMLTarget) BeginStructVariant(_ string, _ uint32, variant string, _ []string) error {
	return t.push(yamlFrame{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!" + variant}, fields: true})
}

func (t *YAMLTarget) End() error {
	if len(t.stack) == 0 {
		return ErrUnbalanced
	}
	f := t.stack[len(t.stack)-1]
	n := f.node
	if n == nil || f.hasField || (n.Kind == yaml.MappingNode && len(n.Content)%2 != 0) {
		return ErrUnbalanced
	}
	t.stack = t.stack[:len(t.stack)-1]
	return t.put(n)
}

// ToYAML decodes one value shaped like s from b and returns it as a YAML
// document.
func ToYAML(s *schema.OwnedDataModelType, b []byte, opts Options) ([]byte, error) {
	d := postcard.NewDeserializer(postcard.NewSliceSource(b))
	t := NewYAMLTarget()
	if err := Reserialize(s, d, t, opts); err != nil {
		return nil, err
	}
	n, err := t.Node()
	if err != nil {
		return nil, targetErr(err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, targetErr(err)
	}
	if err := enc.Close(); err != nil {
		return nil, targetErr(err)
	}
	return buf.Bytes(), nil
}

// FromYAML encodes a YAML document as a value shaped like s. Local tags
// written by YAMLTarget are read back as enum variants.
func FromYAML(s *schema.OwnedDataModelType, doc []byte) ([]byte, error) {
	var n yaml.Node
	if err := yaml.Unmarshal(doc, &n); err != nil {
		return nil, err
	}
	v, err := fromNode(&n, 0)
	if err != nil {
		return nil, err
	}
	return EncodeToBytes(s, v)
}

// fromNode converts a node tree into the values Encode takes. Mappings keep
// their order as a Map.
func fromNode(n *yaml.Node, depth int) (any, error) {
	if depth > schema.MaxDepth {
		return nil, schema.ErrTooDeep
	}
	if localTag(n.Tag) {
		bare := *n
		bare.Tag = ""
		v, err := fromNode(&bare, depth+1)
		if err != nil {
			return nil, err
		}
		return Map{{Key: n.Tag[1:], Value: v}}, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0], depth+1)
	case yaml.AliasNode:
		return fromNode(n.Alias, depth+1)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(Map, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := fromNode(n.Content[i], depth+1)
			if err != nil {
				return nil, err
			}
			v, err := fromNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Key: k, Value: v})
		}
		return out, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
