// mapper/validate.go
package mapper

import (
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

var structValidator = validator.New()

func (m *Mapper) validate(rule model.MappingRule, value any) error {
	for _, vr := range rule.ValidationRules {
		if err := m.check(vr, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) check(vr model.ValidationRule, value any) error {
	switch vr.Type {
	case model.ValidationEnum:
		s := cast.ToString(value)
		for _, allowed := range vr.Values {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %v", s, vr.Values)

	case model.ValidationRegex:
		re, err := m.compileRegexp(vr.Pattern)
		if err != nil {
			return err
		}
		if !re.MatchString(cast.ToString(value)) {
			return fmt.Errorf("value does not match %q", vr.Pattern)
		}
		return nil

	case model.ValidationRange:
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return fmt.Errorf("range needs a number: %w", err)
		}
		if vr.Min != nil && n < *vr.Min {
			return fmt.Errorf("%v is below %v", n, *vr.Min)
		}
		if vr.Max != nil && n > *vr.Max {
			return fmt.Errorf("%v is above %v", n, *vr.Max)
		}
		return nil

	case model.ValidationMinLength, model.ValidationMaxLength:
		l, err := length(value)
		if err != nil {
			return err
		}
		if vr.Type == model.ValidationMinLength && vr.Min != nil && float64(l) < *vr.Min {
			return fmt.Errorf("length %d is below %v", l, *vr.Min)
		}
		if vr.Type == model.ValidationMaxLength && vr.Max != nil && float64(l) > *vr.Max {
			return fmt.Errorf("length %d is above %v", l, *vr.Max)
		}
		return nil

	case model.ValidationExpression:
		ev, err := m.evaluator(vr.Expression)
		if err != nil {
			return err
		}
		ok, err := ev.Evaluate(map[string]any{"value": value})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("expression %q is false", vr.Expression)
		}
		return nil

	default:
		return fmt.Errorf("unknown validation rule %q", vr.Type)
	}
}

func length(value any) (int, error) {
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("length of %T is undefined", value)
}

// ValidateRules checks a mapping table at configuration time and reports
// every problem found, wrapped in ErrInvalidMappingData.
func (m *Mapper) ValidateRules(rules []model.MappingRule) error {
	var result *multierror.Error
	seen := make(map[string]int, len(rules))
	for i, rule := range rules {
		prefix := fmt.Sprintf("rule %d (%s)", i, rule.TargetAttribute)
		if err := structValidator.Struct(rule); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", prefix, err))
			continue
		}
		if j, dup := seen[rule.TargetAttribute]; dup {
			result = multierror.Append(result, fmt.Errorf("%s: %w: also mapped by rule %d", prefix, pip_errors.ErrMappingConflict, j))
		}
		seen[rule.TargetAttribute] = i

		for _, err := range m.checkRule(rule) {
			result = multierror.Append(result, fmt.Errorf("%s: %w", prefix, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", pip_errors.ErrInvalidMappingData, err)
	}
	return nil
}

func (m *Mapper) checkRule(rule model.MappingRule) []error {
	var errs []error
	opts := rule.Options
	switch rule.Transform {
	case model.TransformConcat:
		if len(opts.SourceFields) == 0 {
			errs = append(errs, fmt.Errorf("concat needs options.source_fields"))
		}
	case model.TransformSplit:
		if rule.DataType != model.DataTypeArray {
			errs = append(errs, fmt.Errorf("split requires data_type array"))
		}
	case model.TransformReplace:
		if opts.Pattern == "" {
			errs = append(errs, fmt.Errorf("replace needs options.pattern"))
		} else if opts.Regex {
			if _, err := m.compileRegexp(opts.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("invalid replace pattern: %w", err))
			}
		}
	case model.TransformExtract:
		if opts.Pattern != "" {
			if _, err := m.compileRegexp(opts.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("invalid extract pattern: %w", err))
			}
		}
	case model.TransformCustom:
		switch {
		case opts.Script != "" && opts.Function != "":
			errs = append(errs, fmt.Errorf("custom takes either options.script or options.function"))
		case opts.Script != "":
			if _, err := m.compile(opts.Script); err != nil {
				errs = append(errs, fmt.Errorf("invalid script: %w", err))
			}
		case opts.Function != "":
			if _, ok := m.function(opts.Function); !ok {
				errs = append(errs, fmt.Errorf("function %q is not registered", opts.Function))
			}
		default:
			errs = append(errs, fmt.Errorf("custom needs options.script or options.function"))
		}
	}
	if rule.SourcePath == "" && rule.Transform != model.TransformConcat && rule.Transform != model.TransformCustom {
		errs = append(errs, fmt.Errorf("source_path is required"))
	}

	for _, vr := range rule.ValidationRules {
		switch vr.Type {
		case model.ValidationEnum:
			if len(vr.Values) == 0 {
				errs = append(errs, fmt.Errorf("enum needs values"))
			}
		case model.ValidationRegex:
			if _, err := m.compileRegexp(vr.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("invalid regex rule: %w", err))
			}
		case model.ValidationRange:
			if vr.Min == nil && vr.Max == nil {
				errs = append(errs, fmt.Errorf("range needs min or max"))
			}
		case model.ValidationMinLength:
			if vr.Min == nil {
				errs = append(errs, fmt.Errorf("min_length needs min"))
			}
		case model.ValidationMaxLength:
			if vr.Max == nil {
				errs = append(errs, fmt.Errorf("max_length needs max"))
			}
		case model.ValidationExpression:
			if _, err := m.evaluator(vr.Expression); err != nil {
				errs = append(errs, fmt.Errorf("invalid expression: %w", err))
			}
		}
	}
	return errs
}
