// mapper/mapper_test.go
package mapper_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/mapper"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

func ptr(f float64) *float64 { return &f }

func rule(source, target string, transform model.TransformType, dataType model.DataType) model.MappingRule {
	return model.MappingRule{
		ID:              target,
		SourcePath:      source,
		TargetAttribute: target,
		Transform:       transform,
		DataType:        dataType,
	}
}

func TestDirectIdentity(t *testing.T) {
	m := mapper.New()
	raw := model.RawFields{
		"name":    "Alice",
		"level":   3.5,
		"active":  true,
		"groups":  []any{"eng", "ops"},
		"profile": map[string]any{"site": "nyc"},
		"hired":   "2021-06-01T09:30:00Z",
	}
	rules := []model.MappingRule{
		rule("name", "user.name", model.TransformDirect, model.DataTypeString),
		rule("level", "user.level", model.TransformDirect, model.DataTypeNumber),
		rule("active", "user.active", model.TransformDirect, model.DataTypeBoolean),
		rule("groups", "user.groups", model.TransformDirect, model.DataTypeArray),
		rule("profile", "user.profile", model.TransformDirect, model.DataTypeObject),
		rule("hired", "user.hired", model.TransformDirect, model.DataTypeDatetime),
	}

	res, err := m.Map("hr-1", rules, raw)
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Bag["user.name"])
	assert.Equal(t, 3.5, res.Bag["user.level"])
	assert.Equal(t, true, res.Bag["user.active"])
	assert.Equal(t, []any{"eng", "ops"}, res.Bag["user.groups"])
	assert.Equal(t, map[string]any{"site": "nyc"}, res.Bag["user.profile"])
	assert.Equal(t, "2021-06-01T09:30:00Z", res.Bag["user.hired"])
	assert.Empty(t, res.Issues)
}

func TestCoercion(t *testing.T) {
	m := mapper.New()
	raw := model.RawFields{"level": "7", "flag": "true", "age": "old", "since": int64(0)}

	res, err := m.Map("hr-1", []model.MappingRule{
		rule("level", "level", model.TransformDirect, model.DataTypeNumber),
		rule("flag", "flag", model.TransformDirect, model.DataTypeBoolean),
		rule("age", "age", model.TransformDirect, model.DataTypeNumber),
	}, raw)
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.Bag["level"])
	assert.Equal(t, true, res.Bag["flag"])
	assert.NotContains(t, res.Bag, "age")
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "age", res.Issues[0].Attribute)

	required := rule("age", "age", model.TransformDirect, model.DataTypeNumber)
	required.Required = true
	_, err = m.Map("hr-1", []model.MappingRule{required}, raw)
	var mapErr *pip_errors.MappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, "age", mapErr.Attribute)
}

func TestRequiredMissingFailsBatch(t *testing.T) {
	m := mapper.New()
	tier := rule("customer.tier", "customer.tier", model.TransformDirect, model.DataTypeString)
	tier.Required = true
	region := rule("region", "customer.region", model.TransformDirect, model.DataTypeString)

	res, err := m.Map("crm-1", []model.MappingRule{region, tier}, model.RawFields{"region": "emea"})
	assert.Nil(t, res)
	var mapErr *pip_errors.MappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, "crm-1", mapErr.ConnectionID)
	assert.Equal(t, "customer.tier", mapErr.Attribute)
}

func TestNestedSourcePath(t *testing.T) {
	m := mapper.New()
	raw := model.RawFields{
		"customer":      map[string]any{"tier": "gold", "contacts": []any{map[string]any{"email": "a@x.io"}}},
		"customer.flat": "flat wins",
	}
	res, err := m.Map("crm-1", []model.MappingRule{
		rule("customer.tier", "customer.tier", model.TransformDirect, model.DataTypeString),
		rule("customer.contacts.0.email", "customer.email", model.TransformExtract, model.DataTypeString),
		rule("customer.flat", "customer.flat", model.TransformDirect, model.DataTypeString),
	}, raw)
	require.NoError(t, err)
	assert.Equal(t, "gold", res.Bag["customer.tier"])
	assert.Equal(t, "a@x.io", res.Bag["customer.email"])
	assert.Equal(t, "flat wins", res.Bag["customer.flat"])
}

func TestTransforms(t *testing.T) {
	m := mapper.New()
	raw := model.RawFields{
		"name":  "  Alice Smith ",
		"first": "Alice",
		"last":  "Smith",
		"roles": "admin, dev,,ops",
		"email": "alice@corp.example.com",
		"phone": "555-123-4567",
		"id":    42.0,
	}

	cases := []struct {
		name string
		rule model.MappingRule
		want any
	}{
		{"Uppercase", rule("first", "a", model.TransformUppercase, model.DataTypeString), "ALICE"},
		{"Lowercase", rule("first", "a", model.TransformLowercase, model.DataTypeString), "alice"},
		{"Trim", rule("name", "a", model.TransformTrim, model.DataTypeString), "Alice Smith"},
		{"Format", func() model.MappingRule {
			r := rule("id", "a", model.TransformFormat, model.DataTypeString)
			r.Options.Template = "emp-{value}"
			return r
		}(), "emp-42"},
		{"ExtractRegex", func() model.MappingRule {
			r := rule("email", "a", model.TransformExtract, model.DataTypeString)
			r.Options.Pattern = `@(.+)$`
			return r
		}(), "corp.example.com"},
		{"Concat", func() model.MappingRule {
			r := rule("", "a", model.TransformConcat, model.DataTypeString)
			r.Options.SourceFields = []string{"first", "last"}
			r.Options.Separator = " "
			return r
		}(), "Alice Smith"},
		{"Split", rule("roles", "a", model.TransformSplit, model.DataTypeArray), []any{"admin", "dev", "ops"}},
		{"ReplaceLiteral", func() model.MappingRule {
			r := rule("phone", "a", model.TransformReplace, model.DataTypeString)
			r.Options.Pattern = "-"
			r.Options.Replacement = ""
			return r
		}(), "5551234567"},
		{"ReplaceRegex", func() model.MappingRule {
			r := rule("phone", "a", model.TransformReplace, model.DataTypeString)
			r.Options.Pattern = `\d{4}$`
			r.Options.Replacement = "XXXX"
			r.Options.Regex = true
			return r
		}(), "555-123-XXXX"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.rule.Required = true
			res, err := m.Map("c", []model.MappingRule{tc.rule}, raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Bag["a"])
		})
	}

	t.Run("UppercaseRejectsNumber", func(t *testing.T) {
		r := rule("id", "a", model.TransformUppercase, model.DataTypeString)
		r.Required = true
		_, err := m.Map("c", []model.MappingRule{r}, raw)
		var tErr *pip_errors.TransformError
		require.True(t, errors.As(err, &tErr))
		assert.Equal(t, "uppercase", tErr.Transform)
	})
}

func TestValidationRules(t *testing.T) {
	m := mapper.New()
	raw := model.RawFields{"tier": "gold", "level": 12.0, "code": "ab"}

	build := func(source string, dataType model.DataType, vr model.ValidationRule) model.MappingRule {
		r := rule(source, source, model.TransformDirect, dataType)
		r.ValidationRules = []model.ValidationRule{vr}
		return r
	}

	cases := []struct {
		name string
		rule model.MappingRule
		ok   bool
	}{
		{"EnumPass", build("tier", model.DataTypeString, model.ValidationRule{Type: model.ValidationEnum, Values: []string{"gold", "silver"}}), true},
		{"EnumFail", build("tier", model.DataTypeString, model.ValidationRule{Type: model.ValidationEnum, Values: []string{"bronze"}}), false},
		{"RegexPass", build("tier", model.DataTypeString, model.ValidationRule{Type: model.ValidationRegex, Pattern: "^g"}), true},
		{"RangeFail", build("level", model.DataTypeNumber, model.ValidationRule{Type: model.ValidationRange, Min: ptr(1), Max: ptr(10)}), false},
		{"RangePass", build("level", model.DataTypeNumber, model.ValidationRule{Type: model.ValidationRange, Min: ptr(1)}), true},
		{"MinLengthFail", build("code", model.DataTypeString, model.ValidationRule{Type: model.ValidationMinLength, Min: ptr(3)}), false},
		{"MaxLengthPass", build("code", model.DataTypeString, model.ValidationRule{Type: model.ValidationMaxLength, Max: ptr(3)}), true},
		{"ExpressionPass", build("tier", model.DataTypeString, model.ValidationRule{Type: model.ValidationExpression, Expression: `value == "gold"`}), true},
		{"ExpressionFail", build("tier", model.DataTypeString, model.ValidationRule{Type: model.ValidationExpression, Expression: `value matches "^s"`}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := m.Map("c", []model.MappingRule{tc.rule}, raw)
			require.NoError(t, err)
			_, present := res.Bag[tc.rule.TargetAttribute]
			assert.Equal(t, tc.ok, present)
		})
	}
}

func TestSensitiveTagging(t *testing.T) {
	m := mapper.New()
	ssn := rule("ssn", "user.ssn", model.TransformDirect, model.DataTypeString)
	ssn.Sensitive = true
	dept := rule("dept", "user.department", model.TransformDirect, model.DataTypeString)

	res, err := m.Map("hr-1", []model.MappingRule{ssn, dept}, model.RawFields{"ssn": "123", "dept": "eng"})
	require.NoError(t, err)
	assert.True(t, res.Sensitive["user.ssn"])
	assert.False(t, res.Sensitive["user.department"])
	assert.False(t, res.SensitiveOnly())

	res, err = m.Map("hr-1", []model.MappingRule{ssn}, model.RawFields{"ssn": "123"})
	require.NoError(t, err)
	assert.True(t, res.SensitiveOnly())
}

func TestCustomTransforms(t *testing.T) {
	m := mapper.New(mapper.WithMaxSteps(10000), mapper.WithTimeout(time.Second))
	m.RegisterFunction("initials", func(value any, fields model.RawFields) (any, error) {
		return string(fields["first"].(string)[0]) + string(fields["last"].(string)[0]), nil
	})
	m.RegisterFunction("boom", func(value any, fields model.RawFields) (any, error) {
		panic("kaboom")
	})
	raw := model.RawFields{"first": "Alice", "last": "Smith", "score": 41.0}

	custom := func(opts model.TransformOptions, dataType model.DataType) model.MappingRule {
		r := rule("score", "out", model.TransformCustom, dataType)
		r.Options = opts
		r.Required = true
		return r
	}

	t.Run("Script", func(t *testing.T) {
		script := "def transform(value, fields):\n    return value + 1 if fields['last'] == 'Smith' else 0\n"
		res, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Script: script}, model.DataTypeNumber)}, raw)
		require.NoError(t, err)
		assert.Equal(t, 42.0, res.Bag["out"])
	})

	t.Run("ScriptReturnsDict", func(t *testing.T) {
		script := "def transform(value, fields):\n    return {'name': fields['first'], 'n': len(fields)}\n"
		res, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Script: script}, model.DataTypeObject)}, raw)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "Alice", "n": 3.0}, res.Bag["out"])
	})

	t.Run("ScriptCannotMutateInput", func(t *testing.T) {
		script := "def transform(value, fields):\n    fields['first'] = 'x'\n    return 1\n"
		_, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Script: script}, model.DataTypeNumber)}, raw)
		var tErr *pip_errors.TransformError
		require.True(t, errors.As(err, &tErr))
		assert.Equal(t, "Alice", raw["first"])
	})

	t.Run("StepBudget", func(t *testing.T) {
		script := "def transform(value, fields):\n    n = 0\n    for i in range(10000000):\n        n += i\n    return n\n"
		_, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Script: script}, model.DataTypeNumber)}, raw)
		var tErr *pip_errors.TransformError
		require.True(t, errors.As(err, &tErr))
	})

	t.Run("ScriptError", func(t *testing.T) {
		script := "def transform(value, fields):\n    return fields['missing']\n"
		_, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Script: script}, model.DataTypeString)}, raw)
		var tErr *pip_errors.TransformError
		require.True(t, errors.As(err, &tErr))
	})

	t.Run("RegisteredFunction", func(t *testing.T) {
		res, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Function: "initials"}, model.DataTypeString)}, raw)
		require.NoError(t, err)
		assert.Equal(t, "AS", res.Bag["out"])
	})

	t.Run("PanicBecomesTransformError", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_, err := m.Map("c", []model.MappingRule{custom(model.TransformOptions{Function: "boom"}, model.DataTypeString)}, raw)
			var tErr *pip_errors.TransformError
			require.True(t, errors.As(err, &tErr))
			assert.Contains(t, tErr.Error(), "kaboom")
		})
	})
}

func TestCustomNoneIsNoValue(t *testing.T) {
	m := mapper.New(mapper.WithTimeout(time.Second))
	raw := model.RawFields{"first": "Ada", "score": 7.0}
	script := "def transform(value, fields):\n    return None\n"

	for _, dataType := range []model.DataType{model.DataTypeNumber, model.DataTypeBoolean, model.DataTypeString} {
		t.Run(string(dataType), func(t *testing.T) {
			r := rule("score", "score", model.TransformCustom, dataType)
			r.Options.Script = script

			r.Required = true
			res, err := m.Map("c", []model.MappingRule{rule("first", "first", model.TransformDirect, model.DataTypeString), r}, raw)
			assert.Nil(t, res)
			var mapErr *pip_errors.MappingError
			require.True(t, errors.As(err, &mapErr))
			assert.Equal(t, "score", mapErr.Attribute)

			r.Required = false
			res, err = m.Map("c", []model.MappingRule{r}, raw)
			require.NoError(t, err)
			assert.NotContains(t, res.Bag, "score")
			require.Len(t, res.Issues, 1)
			assert.Equal(t, "transform produced no value", res.Issues[0].Reason)
		})
	}

	t.Run("RegisteredFunctionReturningNil", func(t *testing.T) {
		m.RegisterFunction("nothing", func(any, model.RawFields) (any, error) { return nil, nil })
		r := rule("score", "score", model.TransformCustom, model.DataTypeNumber)
		r.Options.Function = "nothing"
		r.Required = true
		_, err := m.Map("c", []model.MappingRule{r}, raw)
		var mapErr *pip_errors.MappingError
		assert.True(t, errors.As(err, &mapErr))
	})
}

func TestConcatNeedsEverySourceField(t *testing.T) {
	m := mapper.New()
	full := rule("", "full", model.TransformConcat, model.DataTypeString)
	full.Options.SourceFields = []string{"first", "last"}
	full.Options.Separator = " "
	raw := model.RawFields{"first": "Ada"}

	t.Run("Required", func(t *testing.T) {
		r := full
		r.Required = true
		res, err := m.Map("c", []model.MappingRule{r}, raw)
		assert.Nil(t, res)
		var mapErr *pip_errors.MappingError
		require.True(t, errors.As(err, &mapErr))
		assert.Equal(t, "full", mapErr.Attribute)
	})

	t.Run("Optional", func(t *testing.T) {
		res, err := m.Map("c", []model.MappingRule{full}, raw)
		require.NoError(t, err)
		assert.NotContains(t, res.Bag, "full")
		require.Len(t, res.Issues, 1)
		assert.Equal(t, "source field missing", res.Issues[0].Reason)
	})

	t.Run("NestedFields", func(t *testing.T) {
		r := full
		r.Options.SourceFields = []string{"name.first", "name.last"}
		res, err := m.Map("c", []model.MappingRule{r}, model.RawFields{"name": map[string]any{"first": "Ada", "last": "Lovelace"}})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", res.Bag["full"])
	})
}

func TestValidateRules(t *testing.T) {
	m := mapper.New()

	t.Run("Valid", func(t *testing.T) {
		r := rule("tier", "customer.tier", model.TransformDirect, model.DataTypeString)
		r.ValidationRules = []model.ValidationRule{{Type: model.ValidationExpression, Expression: `value != ""`}}
		assert.NoError(t, m.ValidateRules([]model.MappingRule{r}))
	})

	t.Run("CollectsEveryProblem", func(t *testing.T) {
		dup := rule("a", "x", model.TransformDirect, model.DataTypeString)
		split := rule("roles", "roles", model.TransformSplit, model.DataTypeString)
		badRegex := rule("a", "y", model.TransformReplace, model.DataTypeString)
		badRegex.Options = model.TransformOptions{Pattern: "(", Regex: true}
		badScript := rule("a", "z", model.TransformCustom, model.DataTypeString)
		badScript.Options.Script = "def nope(:"
		noFunc := rule("a", "w", model.TransformCustom, model.DataTypeString)
		noFunc.Options.Function = "missing"
		badExpr := rule("a", "v", model.TransformDirect, model.DataTypeString)
		badExpr.ValidationRules = []model.ValidationRule{{Type: model.ValidationExpression, Expression: "value =="}}
		badType := rule("a", "u", model.TransformDirect, "decimal")

		err := m.ValidateRules([]model.MappingRule{dup, dup, split, badRegex, badScript, noFunc, badExpr, badType})
		require.Error(t, err)
		assert.ErrorIs(t, err, pip_errors.ErrInvalidMappingData)
		msg := err.Error()
		for _, want := range []string{"also mapped by rule 0", "split requires data_type array", "invalid replace pattern", "invalid script", `function "missing"`, "invalid expression", "rule 7"} {
			assert.Contains(t, msg, want)
		}
	})
}
