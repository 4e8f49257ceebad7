package xdr

import "fmt"

// ValueType classifies the Go representation stored in a Value.
type ValueType int

const (
	Unknown ValueType = iota
	SignedInt
	UnsignedInt
	Real
	String
	Boolean
	DateTimeValue
)

// Value is a loosely-typed container for a decoded Data payload, useful for
// callers that want a single field type across heterogeneous attributes
// without committing to Go's native int8/uint32/etc. zoo.
type Value struct {
	Type  ValueType
	Value any
}

func (v Value) String() string {
	switch v.Type {
	case SignedInt:
		return fmt.Sprintf("%d", v.Value)
	case UnsignedInt:
		return fmt.Sprintf("%d", v.Value)
	case Real:
		return fmt.Sprintf("%g", v.Value)
	case Boolean:
		return fmt.Sprintf("%t", v.Value)
	case DateTimeValue:
		if dt, ok := v.Value.(DateTime); ok {
			return dt.String()
		}
	}
	return fmt.Sprintf("%v", v.Value)
}
