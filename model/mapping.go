// model/mapping.go
package model

type TransformType string

const (
	TransformDirect    TransformType = "direct"
	TransformUppercase TransformType = "uppercase"
	TransformLowercase TransformType = "lowercase"
	TransformTrim      TransformType = "trim"
	TransformFormat    TransformType = "format"
	TransformExtract   TransformType = "extract"
	TransformConcat    TransformType = "concat"
	TransformSplit     TransformType = "split"
	TransformReplace   TransformType = "replace"
	TransformCustom    TransformType = "custom"
)

type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeNumber   DataType = "number"
	DataTypeBoolean  DataType = "boolean"
	DataTypeArray    DataType = "array"
	DataTypeObject   DataType = "object"
	DataTypeDatetime DataType = "datetime"
)

type ValidationType string

const (
	ValidationEnum       ValidationType = "enum"
	ValidationRegex      ValidationType = "regex"
	ValidationRange      ValidationType = "range"
	ValidationMinLength  ValidationType = "min_length"
	ValidationMaxLength  ValidationType = "max_length"
	ValidationExpression ValidationType = "expression"
)

type ValidationRule struct {
	Type       ValidationType `json:"type" validate:"required,oneof=enum regex range min_length max_length expression"`
	Values     []string       `json:"values,omitempty"`
	Pattern    string         `json:"pattern,omitempty"`
	Min        *float64       `json:"min,omitempty"`
	Max        *float64       `json:"max,omitempty"`
	Expression string         `json:"expression,omitempty"`
}

// TransformOptions carries the per-transform parameters.
type TransformOptions struct {
	SourceFields []string `json:"source_fields,omitempty"`
	Separator    string   `json:"separator,omitempty"`
	Template     string   `json:"template,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	Replacement  string   `json:"replacement,omitempty"`
	Regex        bool     `json:"regex,omitempty"`
	Script       string   `json:"script,omitempty"`
	Function     string   `json:"function,omitempty"`
}

// MappingRule maps one raw field of a connection to a canonical attribute.
type MappingRule struct {
	ID              string           `json:"id"`
	ConnectionID    string           `json:"connection_id"`
	SourcePath      string           `json:"source_path"`
	TargetAttribute string           `json:"target_attribute" validate:"required,max=255"`
	Transform       TransformType    `json:"transform" validate:"required,oneof=direct uppercase lowercase trim format extract concat split replace custom"`
	DataType        DataType         `json:"data_type" validate:"required,oneof=string number boolean array object datetime"`
	Required        bool             `json:"required"`
	Sensitive       bool             `json:"sensitive"`
	ValidationRules []ValidationRule `json:"validation_rules,omitempty" validate:"dive"`
	Options         TransformOptions `json:"options,omitempty"`
}

// RawFields is the untyped output of a connector fetch.
type RawFields map[string]any

// AttributeBag maps canonical attribute paths to resolved values.
type AttributeBag map[string]any

func (b AttributeBag) Clone() AttributeBag {
	out := make(AttributeBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
