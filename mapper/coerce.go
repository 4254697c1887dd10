// mapper/coerce.go
package mapper

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

// coerce converts a transformed value to the rule's data type. Numbers are
// float64; datetimes are RFC 3339 strings so cached bags survive JSON.
func coerce(dataType model.DataType, value any) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot use null as %s", dataType)
	}
	switch dataType {
	case model.DataTypeString:
		switch value.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("cannot use %T as string", value)
		}
		return cast.ToStringE(value)

	case model.DataTypeNumber:
		if _, ok := value.(bool); ok {
			return nil, fmt.Errorf("cannot use bool as number")
		}
		return cast.ToFloat64E(value)

	case model.DataTypeBoolean:
		return cast.ToBoolE(value)

	case model.DataTypeArray:
		switch v := value.(type) {
		case []any:
			return v, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		}
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("cannot use %T as array", value)
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil

	case model.DataTypeObject:
		if _, ok := value.(string); ok {
			return nil, fmt.Errorf("cannot use string as object")
		}
		return cast.ToStringMapE(value)

	case model.DataTypeDatetime:
		t, err := cast.ToTimeE(value)
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339Nano), nil

	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
}
