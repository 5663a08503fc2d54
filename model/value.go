package model

import "strconv"

// Value is a tagged observation or attribute value: the raw wire text plus
// the parsed number when the declared representation is numeric.
type Value struct {
	Raw     string
	Num     float64
	Numeric bool
}

// StringValue builds a string-typed value.
func StringValue(s string) Value { return Value{Raw: s} }

// NumberValue builds a numeric value.
func NumberValue(f float64) Value {
	return Value{Raw: strconv.FormatFloat(f, 'g', -1, 64), Num: f, Numeric: true}
}

// ParseValue parses raw wire text under the given representation. A raw text
// that fails to parse as a number when one is required is an invalid_value;
// the caller adds key context.
func ParseValue(raw string, numeric bool) (Value, error) {
	if !numeric {
		return StringValue(raw), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, Issues{{
			Code:    CodeInvalidValue,
			Raw:     raw,
			Message: "value does not parse under its declared numeric representation",
			Cause:   err,
		}}
	}
	return Value{Raw: raw, Num: f, Numeric: true}, nil
}

func (v Value) String() string { return v.Raw }

// Equal compares values by logical content: numerically when both sides are
// numeric, by raw text otherwise.
func (v Value) Equal(other Value) bool {
	if v.Numeric && other.Numeric {
		return v.Num == other.Num
	}
	return v.Numeric == other.Numeric && v.Raw == other.Raw
}

// AttributeValue pairs an attribute id with its value. The attachment level
// is declared on the owning DataAttribute, not stored here.
type AttributeValue struct {
	ID    string
	Value Value
}

// AttributeValues is an ordered attribute-value collection.
type AttributeValues []AttributeValue

// Get returns the value recorded for an attribute id.
func (avs AttributeValues) Get(id string) (Value, bool) {
	for _, av := range avs {
		if av.ID == id {
			return av.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value for id or appends a new entry.
func (avs *AttributeValues) Set(id string, v Value) {
	for i, av := range *avs {
		if av.ID == id {
			(*avs)[i].Value = v
			return
		}
	}
	*avs = append(*avs, AttributeValue{ID: id, Value: v})
}
