package types

import "fmt"

// PropertyKind tags which variant a PropertyValue holds.
type PropertyKind int

const (
	PropNull PropertyKind = iota
	PropBool
	PropInt
	PropFloat
	PropString
	PropObject
	PropList
	PropMap
)

// PropertyValue is the persisted variant of Value (spec.md §3): everything
// Value can hold except Lambda. It is what gets gob-encoded into an Object
// record by objstore and what property/verb-return values project to and
// from at the store boundary.
type PropertyValue struct {
	Kind   PropertyKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Object ObjectID
	List   []PropertyValue
	Map    map[string]PropertyValue
}

// NullProp, BoolProp, ... are convenience constructors mirroring the Value
// constructors in value.go.
func NullProp() PropertyValue           { return PropertyValue{Kind: PropNull} }
func BoolProp(b bool) PropertyValue     { return PropertyValue{Kind: PropBool, Bool: b} }
func IntProp(n int64) PropertyValue     { return PropertyValue{Kind: PropInt, Int: n} }
func FloatProp(f float64) PropertyValue { return PropertyValue{Kind: PropFloat, Float: f} }
func StringProp(s string) PropertyValue { return PropertyValue{Kind: PropString, Str: s} }
func ObjectProp(id ObjectID) PropertyValue {
	return PropertyValue{Kind: PropObject, Object: id}
}
func ListProp(elems ...PropertyValue) PropertyValue {
	return PropertyValue{Kind: PropList, List: elems}
}
func MapProp(entries map[string]PropertyValue) PropertyValue {
	if entries == nil {
		entries = map[string]PropertyValue{}
	}
	return PropertyValue{Kind: PropMap, Map: entries}
}

// ErrLambdaNotPersistable is returned by ValueToProperty when asked to
// project a Lambda: lambdas are not persistable (spec.md §3, §9
// "Lambdas are not persistable").
type ErrLambdaNotPersistable struct{}

func (ErrLambdaNotPersistable) Error() string {
	return "lambda values cannot be stored in a property; store a verb on an object instead"
}

// ToValue projects a persisted PropertyValue up to the runtime Value domain.
func (p PropertyValue) ToValue() Value {
	switch p.Kind {
	case PropNull:
		return Null
	case PropBool:
		return NewBool(p.Bool)
	case PropInt:
		return NewInt(p.Int)
	case PropFloat:
		return NewFloat(p.Float)
	case PropString:
		return NewString(p.Str)
	case PropObject:
		return NewObject(p.Object)
	case PropList:
		elems := make([]Value, len(p.List))
		for i, e := range p.List {
			elems[i] = e.ToValue()
		}
		return ListValue{Elements: elems}
	case PropMap:
		entries := make(map[string]Value, len(p.Map))
		for k, v := range p.Map {
			entries[k] = v.ToValue()
		}
		return MapValue{Entries: entries}
	default:
		return Null
	}
}

// ValueToProperty projects a runtime Value down to its persisted form. It
// fails (ErrLambdaNotPersistable) for any Value containing a Lambda,
// including nested inside a List or Map.
func ValueToProperty(v Value) (PropertyValue, error) {
	switch val := v.(type) {
	case NullValue:
		return NullProp(), nil
	case BoolValue:
		return BoolProp(bool(val)), nil
	case IntValue:
		return IntProp(int64(val)), nil
	case FloatValue:
		return FloatProp(float64(val)), nil
	case StringValue:
		return StringProp(string(val)), nil
	case ObjectValue:
		return ObjectProp(val.ID), nil
	case ListValue:
		list := make([]PropertyValue, len(val.Elements))
		for i, e := range val.Elements {
			pv, err := ValueToProperty(e)
			if err != nil {
				return PropertyValue{}, err
			}
			list[i] = pv
		}
		return ListProp(list...), nil
	case MapValue:
		entries := make(map[string]PropertyValue, len(val.Entries))
		for k, e := range val.Entries {
			pv, err := ValueToProperty(e)
			if err != nil {
				return PropertyValue{}, err
			}
			entries[k] = pv
		}
		return MapProp(entries), nil
	default:
		// Any Value implementor that isn't one of the above (i.e. a Lambda,
		// defined in package eval) cannot be persisted.
		return PropertyValue{}, ErrLambdaNotPersistable{}
	}
}

func (p PropertyValue) String() string {
	return p.ToValue().String()
}

func (p PropertyValue) Equal(o PropertyValue) bool {
	return p.ToValue().Equal(o.ToValue())
}

// GoString aids debugging/test failure output.
func (p PropertyValue) GoString() string {
	return fmt.Sprintf("PropertyValue(%s)", p.String())
}
