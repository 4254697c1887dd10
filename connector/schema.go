// connector/schema.go
package connector

import (
	"sort"
	"strings"
	"time"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

var (
	secretHints = []string{"password", "secret", "token", "api_key", "apikey", "private"}
	piiHints    = []string{"ssn", "email", "phone", "birth", "dob", "address", "salary", "national_id"}
)

// DiscoverFields flattens a sample record into dotted field names with an
// inferred data type, a sensitivity hint and an example value. Examples are
// withheld for fields that look sensitive.
func DiscoverFields(sample map[string]any) []model.DiscoveredField {
	fields := make([]model.DiscoveredField, 0, len(sample))
	flattenSample("", sample, &fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func flattenSample(prefix string, sample map[string]any, out *[]model.DiscoveredField) {
	for k, v := range sample {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenSample(name, nested, out)
			continue
		}
		field := model.DiscoveredField{
			Name:        name,
			Type:        string(inferDataType(v)),
			Sensitivity: sensitivityOf(name),
		}
		if field.Sensitivity == "" {
			field.Example = v
		}
		*out = append(*out, field)
	}
}

func inferDataType(v any) model.DataType {
	switch t := v.(type) {
	case bool:
		return model.DataTypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return model.DataTypeNumber
	case []any, []string:
		return model.DataTypeArray
	case map[string]any:
		return model.DataTypeObject
	case time.Time:
		return model.DataTypeDatetime
	case string:
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return model.DataTypeDatetime
		}
		return model.DataTypeString
	default:
		return model.DataTypeString
	}
}

func sensitivityOf(name string) string {
	lower := strings.ToLower(name)
	for _, hint := range secretHints {
		if strings.Contains(lower, hint) {
			return "secret"
		}
	}
	for _, hint := range piiHints {
		if strings.Contains(lower, hint) {
			return "pii"
		}
	}
	return ""
}

// fieldsFromStrings is used by key/value sources that only return strings.
func fieldsFromStrings(in map[string]string) model.RawFields {
	out := make(model.RawFields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
