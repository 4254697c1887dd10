// mapper/transform.go
package mapper

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const valuePlaceholder = "{value}"

func (m *Mapper) apply(rule model.MappingRule, value any, raw model.RawFields) (any, error) {
	opts := rule.Options
	switch rule.Transform {
	case model.TransformDirect, "":
		return value, nil

	case model.TransformUppercase, model.TransformLowercase, model.TransformTrim:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a string, got %T", rule.Transform, value)
		}
		switch rule.Transform {
		case model.TransformUppercase:
			return strings.ToUpper(s), nil
		case model.TransformLowercase:
			return strings.ToLower(s), nil
		default:
			return strings.TrimSpace(s), nil
		}

	case model.TransformFormat:
		tmpl := opts.Template
		if tmpl == "" {
			tmpl = valuePlaceholder
		}
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(tmpl, valuePlaceholder, s), nil

	case model.TransformExtract:
		if opts.Pattern == "" {
			return value, nil
		}
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, err
		}
		re, err := m.compileRegexp(opts.Pattern)
		if err != nil {
			return nil, err
		}
		match := re.FindStringSubmatch(s)
		switch {
		case match == nil:
			return nil, fmt.Errorf("pattern %q did not match", opts.Pattern)
		case len(match) > 1:
			return match[1], nil
		default:
			return match[0], nil
		}

	case model.TransformConcat:
		parts, ok := value.([]any)
		if !ok {
			parts = []any{value}
		}
		strs := make([]string, 0, len(parts))
		for _, p := range parts {
			s, err := cast.ToStringE(p)
			if err != nil {
				return nil, err
			}
			strs = append(strs, s)
		}
		return strings.Join(strs, opts.Separator), nil

	case model.TransformSplit:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("split requires a string, got %T", value)
		}
		sep := opts.Separator
		if sep == "" {
			sep = ","
		}
		out := []any{}
		for _, part := range strings.Split(s, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil

	case model.TransformReplace:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("replace requires a string, got %T", value)
		}
		if !opts.Regex {
			return strings.ReplaceAll(s, opts.Pattern, opts.Replacement), nil
		}
		re, err := m.compileRegexp(opts.Pattern)
		if err != nil {
			return nil, err
		}
		return re.ReplaceAllString(s, opts.Replacement), nil

	case model.TransformCustom:
		return m.custom(rule, value, raw)

	default:
		return nil, fmt.Errorf("unknown transform %q", rule.Transform)
	}
}
