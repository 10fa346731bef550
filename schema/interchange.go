package schema

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Owned schemas travel through text and CBOR formats in an externally tagged
// form: leaf kinds are bare strings ("U8"), everything else is a single-entry
// map from the kind name to its payload.
//
//	{"Option": "U8"}
//	{"Struct": {"name": "Point", "data": {"Struct": [{"name": "x", "ty": "I32"}]}}}

var (
	json       = jsoniter.ConfigCompatibleWithStandardLibrary
	cborEnc, _ = cbor.CoreDetEncOptions().EncMode()
)

// Tagged returns o in its externally tagged form, built only from strings,
// []any and map[string]any.
func (o *OwnedDataModelType) Tagged() any {
	switch o.Kind {
	case Option, Seq:
		return map[string]any{o.Kind.String(): o.Elem.Tagged()}
	case Tuple:
		return map[string]any{"Tuple": taggedList(o.Elems)}
	case Map:
		return map[string]any{"Map": map[string]any{"key": o.Key.Tagged(), "val": o.Val.Tagged()}}
	case Struct:
		return map[string]any{"Struct": map[string]any{"name": o.Name, "data": o.Data.tagged()}}
	case Enum:
		vs := make([]any, len(o.Variants))
		for i := range o.Variants {
			vs[i] = map[string]any{"name": o.Variants[i].Name, "data": o.Variants[i].Data.tagged()}
		}
		return map[string]any{"Enum": map[string]any{"name": o.Name, "variants": vs}}
	}
	return o.Kind.String()
}

func taggedList(ts []OwnedDataModelType) []any {
	out := make([]any, len(ts))
	for i := range ts {
		out[i] = ts[i].Tagged()
	}
	return out
}

func (d *OwnedData) tagged() any {
	switch d.Kind {
	case DataNewtype:
		return map[string]any{"Newtype": d.Newtype.Tagged()}
	case DataTuple:
		return map[string]any{"Tuple": taggedList(d.Tuple)}
	case DataStruct:
		fields := make([]any, len(d.Fields))
		for i := range d.Fields {
			fields[i] = map[string]any{"name": d.Fields[i].Name, "ty": d.Fields[i].Type.Tagged()}
		}
		return map[string]any{"Struct": fields}
	}
	return "Unit"
}

// FromTagged parses the externally tagged form as produced by Tagged or by
// decoding JSON, YAML or CBOR into an interface value.
func FromTagged(v any) (*OwnedDataModelType, error) {
	o := new(OwnedDataModelType)
	if err := o.untag(v, 0); err != nil {
		return nil, err
	}
	return o, nil
}

// untag parses the generic value produced by a JSON, YAML or CBOR decoder.
func (o *OwnedDataModelType) untag(v any, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	name, payload, err := splitTag(v)
	if err != nil {
		return err
	}
	kind, ok := ParseKind(name)
	if !ok {
		return fmt.Errorf("schema: unknown kind %q", name)
	}
	*o = OwnedDataModelType{Kind: kind}
	if kind.IsLeaf() {
		if payload != nil {
			return fmt.Errorf("schema: %s takes no payload", kind)
		}
		return nil
	}
	if payload == nil {
		return fmt.Errorf("schema: %s needs a payload", kind)
	}
	switch kind {
	case Option, Seq:
		o.Elem = new(OwnedDataModelType)
		return o.Elem.untag(payload, depth+1)
	case Tuple:
		o.Elems, err = untagList(payload, depth+1)
		return err
	case Map:
		m, err := asMap(payload)
		if err != nil {
			return err
		}
		o.Key, o.Val = new(OwnedDataModelType), new(OwnedDataModelType)
		if err := o.Key.untag(m["key"], depth+1); err != nil {
			return err
		}
		return o.Val.untag(m["val"], depth+1)
	case Struct:
		m, err := asMap(payload)
		if err != nil {
			return err
		}
		if o.Name, err = asString(m["name"]); err != nil {
			return err
		}
		return o.Data.untag(m["data"], depth+1)
	case Enum:
		m, err := asMap(payload)
		if err != nil {
			return err
		}
		if o.Name, err = asString(m["name"]); err != nil {
			return err
		}
		vs, err := asList(m["variants"])
		if err != nil {
			return err
		}
		o.Variants = make([]OwnedVariant, len(vs))
		for i, v := range vs {
			vm, err := asMap(v)
			if err != nil {
				return err
			}
			if o.Variants[i].Name, err = asString(vm["name"]); err != nil {
				return err
			}
			if err := o.Variants[i].Data.untag(vm["data"], depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func untagList(v any, depth int) ([]OwnedDataModelType, error) {
	vs, err := asList(v)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	out := make([]OwnedDataModelType, len(vs))
	for i := range vs {
		if err := out[i].untag(vs[i], depth); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *OwnedData) untag(v any, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	name, payload, err := splitTag(v)
	if err != nil {
		return err
	}
	switch name {
	case "Unit":
		*d = OwnedData{Kind: DataUnit}
	case "Newtype":
		*d = OwnedData{Kind: DataNewtype, Newtype: new(OwnedDataModelType)}
		return d.Newtype.untag(payload, depth+1)
	case "Tuple":
		*d = OwnedData{Kind: DataTuple}
		d.Tuple, err = untagList(payload, depth+1)
		return err
	case "Struct":
		*d = OwnedData{Kind: DataStruct}
		fs, err := asList(payload)
		if err != nil {
			return err
		}
		d.Fields = make([]OwnedNamedField, len(fs))
		for i, f := range fs {
			fm, err := asMap(f)
			if err != nil {
				return err
			}
			if d.Fields[i].Name, err = asString(fm["name"]); err != nil {
				return err
			}
			if err := d.Fields[i].Type.untag(fm["ty"], depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("schema: unknown data kind %q", name)
	}
	return nil
}

func splitTag(v any) (string, any, error) {
	if s, ok := v.(string); ok {
		return s, nil, nil
	}
	m, err := asMap(v)
	if err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("schema: tagged value has %d keys, want 1", len(m))
	}
	for k, p := range m {
		return k, p, nil
	}
	panic("unreachable")
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("schema: non-string key %v", k)
			}
			out[s] = e
		}
		return out, nil
	}
	return nil, fmt.Errorf("schema: expected a map, got %T", v)
}

func asList(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("schema: expected a list, got %T", v)
	}
	return l, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("schema: expected a string, got %T", v)
	}
	return s, nil
}

func (o *OwnedDataModelType) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Tagged())
}

func (o *OwnedDataModelType) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return o.untag(v, 0)
}

func (o *OwnedDataModelType) MarshalYAML() (any, error) {
	return o.Tagged(), nil
}

func (o *OwnedDataModelType) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return o.untag(v, 0)
}

func (o *OwnedDataModelType) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(o.Tagged())
}

func (o *OwnedDataModelType) UnmarshalCBOR(b []byte) error {
	var v any
	if err := cbor.Unmarshal(b, &v); err != nil {
		return err
	}
	return o.untag(v, 0)
}
