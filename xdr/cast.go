package xdr

import (
	"fmt"
	"reflect"
	"time"
)

// Cast unmarshals a decoded Data value into trg, a pointer to a bool,
// numeric, string, slice, struct, time.Time, DateTime, Obis, Value or Data.
// Struct fields are matched positionally against a Structure's elements;
// unexported fields are skipped and a Null element leaves a pointer field
// nil.
func Cast(trg any, data Data) error {
	r := reflect.ValueOf(trg)
	if r.Kind() != reflect.Pointer || r.IsNil() {
		return fmt.Errorf("xdr: cast target must be a non-nil pointer")
	}
	return recast(reflect.Indirect(r), &data)
}

func recast(trg reflect.Value, data *Data) error {
	k := trg.Kind()
	_, isTime := trg.Interface().(time.Time)
	_, isDateTime := trg.Interface().(DateTime)
	_, isObis := trg.Interface().(Obis)
	_, isData := trg.Interface().(Data)
	_, isValue := trg.Interface().(Value)

	switch {
	case isData:
		trg.Set(reflect.ValueOf(*data))
		return nil
	case isTime:
		return recastTime(trg, data)
	case isDateTime:
		return recastDateTime(trg, data)
	case isObis:
		return recastObis(trg, data)
	case isValue:
		return recastValue(trg, data)
	}

	switch k {
	case reflect.Pointer:
		elem := reflect.New(trg.Type().Elem())
		if err := recast(reflect.Indirect(elem), data); err != nil {
			return err
		}
		trg.Set(elem)
	case reflect.Bool:
		return recastBool(trg, data)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return recastInt(trg, data)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return recastUint(trg, data)
	case reflect.Float32, reflect.Float64:
		return recastFloat(trg, data)
	case reflect.String:
		return recastString(trg, data)
	case reflect.Slice:
		return recastSlice(trg, data)
	case reflect.Struct:
		return recastStruct(trg, data)
	default:
		return fmt.Errorf("xdr: cast target has unsupported kind %v", k)
	}
	return nil
}

func recastTime(trg reflect.Value, data *Data) error {
	switch b := data.Value.(type) {
	case []byte:
		if len(b) != 12 {
			return fmt.Errorf("xdr: cast to time.Time requires 12 bytes, got %d", len(b))
		}
		dt, err := DateTimeFromBytes(b)
		if err != nil {
			return err
		}
		tt, err := dt.AsTime()
		if err != nil {
			return err
		}
		trg.Set(reflect.ValueOf(tt))
	case DateTime:
		tt, err := b.AsTime()
		if err != nil {
			return err
		}
		trg.Set(reflect.ValueOf(tt))
	default:
		return fmt.Errorf("xdr: cast to time.Time: unsupported source type %T", b)
	}
	return nil
}

func recastDateTime(trg reflect.Value, data *Data) error {
	switch b := data.Value.(type) {
	case []byte:
		if len(b) != 12 {
			return fmt.Errorf("xdr: cast to DateTime requires 12 bytes, got %d", len(b))
		}
		dt, err := DateTimeFromBytes(b)
		if err != nil {
			return err
		}
		trg.Set(reflect.ValueOf(dt))
	case DateTime:
		trg.Set(reflect.ValueOf(b))
	default:
		return fmt.Errorf("xdr: cast to DateTime: unsupported source type %T", b)
	}
	return nil
}

func recastObis(trg reflect.Value, data *Data) error {
	b, ok := data.Value.([]byte)
	if !ok {
		return fmt.Errorf("xdr: cast to Obis: unsupported source type %T", data.Value)
	}
	ob, err := ObisFromBytes(b)
	if err != nil {
		return err
	}
	trg.Set(reflect.ValueOf(ob))
	return nil
}

func recastStruct(trg reflect.Value, data *Data) error {
	v, ok := data.Value.([]Data)
	if !ok {
		return fmt.Errorf("xdr: cast to struct: unexpected source type %T", data.Value)
	}
	n := len(v)
	if trg.NumField() != n {
		return fmt.Errorf("xdr: cast to struct: target has %d fields, data has %d", trg.NumField(), n)
	}
	for i := 0; i < n; i++ {
		if !trg.Type().Field(i).IsExported() {
			continue
		}
		field := trg.Field(i)
		if field.Kind() == reflect.Pointer {
			if v[i].Tag != TagNull && field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			if v[i].Tag == TagNull && !field.IsNil() {
				field.Set(reflect.Zero(field.Type()))
			}
		} else if v[i].Tag == TagNull {
			return fmt.Errorf("xdr: cast to struct: field %s is not a pointer but data element is Null", trg.Type().Field(i).Name)
		}
		if v[i].Tag != TagNull {
			if err := recast(reflect.Indirect(field), &v[i]); err != nil {
				return fmt.Errorf("xdr: cast to struct: field %s: %w", trg.Type().Field(i).Name, err)
			}
		}
	}
	return nil
}

func recastSlice(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case []byte:
		if trg.Type() != reflect.TypeOf([]byte{}) {
			return fmt.Errorf("xdr: cast to slice: invalid target type %v", trg.Type())
		}
		if trg.IsNil() || trg.Cap() < len(v) {
			trg.Set(reflect.MakeSlice(trg.Type(), len(v), len(v)))
		} else {
			trg.SetLen(len(v))
		}
		copy(trg.Bytes(), v)
	case []Data:
		if trg.IsNil() || trg.Cap() < len(v) {
			trg.Set(reflect.MakeSlice(trg.Type(), len(v), len(v)))
		} else {
			trg.SetLen(len(v))
		}
		for i := range v {
			vv := trg.Index(i)
			if vv.Kind() == reflect.Pointer && vv.IsNil() {
				vv.Set(reflect.New(vv.Type().Elem()))
			}
			if err := recast(reflect.Indirect(vv), &v[i]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("xdr: cast to slice: unexpected source type %T", v)
	}
	return nil
}

func recastString(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case string:
		trg.SetString(v)
	case []byte:
		trg.SetString(string(v))
	default:
		trg.SetString(fmt.Sprintf("%v", v))
	}
	return nil
}

func recastValue(trg reflect.Value, data *Data) error {
	value := Value{Type: Unknown}
	switch v := data.Value.(type) {
	case bool:
		value.Type, value.Value = Boolean, v
	case int8:
		value.Type, value.Value = SignedInt, int64(v)
	case int16:
		value.Type, value.Value = SignedInt, int64(v)
	case int32:
		value.Type, value.Value = SignedInt, int64(v)
	case int64:
		value.Type, value.Value = SignedInt, v
	case uint8:
		value.Type, value.Value = UnsignedInt, uint64(v)
	case uint16:
		value.Type, value.Value = UnsignedInt, uint64(v)
	case uint32:
		value.Type, value.Value = UnsignedInt, uint64(v)
	case uint64:
		value.Type, value.Value = UnsignedInt, v
	case float32:
		value.Type, value.Value = Real, float64(v)
	case float64:
		value.Type, value.Value = Real, v
	case string:
		value.Type, value.Value = String, v
	case []byte:
		if len(v) == 12 {
			if dt, err := DateTimeFromBytes(v); err == nil {
				value.Type, value.Value = DateTimeValue, dt
				break
			}
		}
		value.Type, value.Value = String, string(v)
	default:
		return fmt.Errorf("xdr: cast to Value: unexpected source type %T", v)
	}
	trg.Set(reflect.ValueOf(value))
	return nil
}

func recastInt(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case bool:
		trg.SetInt(boolToInt64(v))
	case int8:
		trg.SetInt(int64(v))
	case int16:
		trg.SetInt(int64(v))
	case int32:
		trg.SetInt(int64(v))
	case int64:
		trg.SetInt(v)
	default:
		return fmt.Errorf("xdr: cast to int: unexpected source type %T", v)
	}
	return nil
}

func recastBool(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case bool:
		trg.SetBool(v)
	case int8:
		trg.SetBool(v != 0)
	case int16:
		trg.SetBool(v != 0)
	case int32:
		trg.SetBool(v != 0)
	case int64:
		trg.SetBool(v != 0)
	case uint8:
		trg.SetBool(v != 0)
	case uint16:
		trg.SetBool(v != 0)
	case uint32:
		trg.SetBool(v != 0)
	case uint64:
		trg.SetBool(v != 0)
	default:
		return fmt.Errorf("xdr: cast to bool: unexpected source type %T", v)
	}
	return nil
}

func recastUint(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case bool:
		if v {
			trg.SetUint(1)
		} else {
			trg.SetUint(0)
		}
	case uint8:
		trg.SetUint(uint64(v))
	case uint16:
		trg.SetUint(uint64(v))
	case uint32:
		trg.SetUint(uint64(v))
	case uint64:
		trg.SetUint(v)
	default:
		return fmt.Errorf("xdr: cast to uint: unexpected source type %T", v)
	}
	return nil
}

func recastFloat(trg reflect.Value, data *Data) error {
	switch v := data.Value.(type) {
	case bool:
		if v {
			trg.SetFloat(1)
		} else {
			trg.SetFloat(0)
		}
	case float32:
		trg.SetFloat(float64(v))
	case float64:
		trg.SetFloat(v)
	case int8:
		trg.SetFloat(float64(v))
	case int16:
		trg.SetFloat(float64(v))
	case int32:
		trg.SetFloat(float64(v))
	case int64:
		trg.SetFloat(float64(v))
	default:
		return fmt.Errorf("xdr: cast to float: unexpected source type %T", v)
	}
	return nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
