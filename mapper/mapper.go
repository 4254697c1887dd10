// mapper/mapper.go

// Package mapper turns raw connector output into canonical attributes by
// applying a connection's ordered mapping table.
package mapper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-bexpr"
	"github.com/mitchellh/pointerstructure"
	"go.uber.org/zap"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const (
	defaultMaxSteps = 100000
	defaultTimeout  = 50 * time.Millisecond
)

// Func is a named, pure Go transform registered at startup and referenced
// from a custom rule through options.function. It must not mutate fields.
type Func func(value any, fields model.RawFields) (any, error)

// Result is the outcome of mapping one raw record.
type Result struct {
	Bag       model.AttributeBag
	Sensitive map[string]bool
	Issues    []model.FieldIssue
}

// SensitiveOnly reports whether every attribute in the bag is sensitive.
func (r *Result) SensitiveOnly() bool {
	if len(r.Bag) == 0 {
		return false
	}
	for attr := range r.Bag {
		if !r.Sensitive[attr] {
			return false
		}
	}
	return true
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithMaxSteps bounds the Starlark execution steps of one custom transform.
func WithMaxSteps(steps uint64) Option {
	return func(m *Mapper) {
		if steps > 0 {
			m.maxSteps = steps
		}
	}
}

// WithTimeout bounds the wall-clock time of one custom transform.
func WithTimeout(d time.Duration) Option {
	return func(m *Mapper) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// Mapper applies mapping tables. It caches compiled regexps, filter
// expressions and scripts, and is safe for concurrent use.
type Mapper struct {
	maxSteps uint64
	timeout  time.Duration

	funcsMu sync.RWMutex
	funcs   map[string]Func

	regexps    sync.Map // pattern -> *regexp.Regexp
	evaluators sync.Map // expression -> *bexpr.Evaluator
	programs   sync.Map // script -> *program
}

// New returns a Mapper with default transform limits.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		maxSteps: defaultMaxSteps,
		timeout:  defaultTimeout,
		funcs:    make(map[string]Func),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterFunction makes fn callable from custom rules as options.function.
func (m *Mapper) RegisterFunction(name string, fn Func) {
	m.funcsMu.Lock()
	defer m.funcsMu.Unlock()
	m.funcs[name] = fn
}

func (m *Mapper) function(name string) (Func, bool) {
	m.funcsMu.RLock()
	defer m.funcsMu.RUnlock()
	fn, ok := m.funcs[name]
	return fn, ok
}

// Map applies rules in order. Per rule: required check, transform, type
// coercion, validation rules. A failing required rule aborts the whole batch
// with a *MappingError or *TransformError; a failing optional rule drops the
// attribute and is reported in Result.Issues.
func (m *Mapper) Map(connectionID string, rules []model.MappingRule, raw model.RawFields) (*Result, error) {
	res := &Result{
		Bag:       make(model.AttributeBag, len(rules)),
		Sensitive: make(map[string]bool),
	}
	for _, rule := range rules {
		value, err := m.mapRule(connectionID, rule, raw)
		if err != nil {
			if rule.Required {
				logger.Warn("Required attribute failed mapping",
					zap.String("connectionID", connectionID),
					zap.String("ruleID", rule.ID),
					zap.String("attribute", rule.TargetAttribute),
					zap.Error(err))
				return nil, err
			}
			if !errors.Is(err, errFieldAbsent) {
				logger.Debug("Optional attribute dropped",
					zap.String("connectionID", connectionID),
					zap.String("ruleID", rule.ID),
					zap.String("attribute", rule.TargetAttribute),
					zap.Error(err))
			}
			res.Issues = append(res.Issues, model.FieldIssue{RuleID: rule.ID, Attribute: rule.TargetAttribute, Reason: issueReason(err)})
			continue
		}
		res.Bag[rule.TargetAttribute] = value
		if rule.Sensitive {
			res.Sensitive[rule.TargetAttribute] = true
		}
	}
	return res, nil
}

var (
	errFieldAbsent = errors.New("source field missing")
	errNoValue     = errors.New("transform produced no value")
)

func (m *Mapper) mapRule(connectionID string, rule model.MappingRule, raw model.RawFields) (any, error) {
	value, present := m.source(rule, raw)
	if !present {
		return nil, &pip_errors.MappingError{
			ConnectionID: connectionID,
			RuleID:       rule.ID,
			Attribute:    rule.TargetAttribute,
			Reason:       "required check",
			Err:          fmt.Errorf("%w: %s", errFieldAbsent, rule.SourcePath),
		}
	}

	transformed, err := m.apply(rule, value, raw)
	if err != nil {
		return nil, &pip_errors.TransformError{
			ConnectionID: connectionID,
			RuleID:       rule.ID,
			Attribute:    rule.TargetAttribute,
			Transform:    string(rule.Transform),
			Err:          err,
		}
	}
	if transformed == nil {
		return nil, &pip_errors.MappingError{
			ConnectionID: connectionID,
			RuleID:       rule.ID,
			Attribute:    rule.TargetAttribute,
			Reason:       "required check",
			Err:          fmt.Errorf("%w: %s", errNoValue, rule.Transform),
		}
	}

	typed, err := coerce(rule.DataType, transformed)
	if err != nil {
		return nil, &pip_errors.MappingError{
			ConnectionID: connectionID,
			RuleID:       rule.ID,
			Attribute:    rule.TargetAttribute,
			Reason:       "type coercion to " + string(rule.DataType),
			Err:          err,
		}
	}

	if err := m.validate(rule, typed); err != nil {
		return nil, &pip_errors.MappingError{
			ConnectionID: connectionID,
			RuleID:       rule.ID,
			Attribute:    rule.TargetAttribute,
			Reason:       "validation",
			Err:          err,
		}
	}
	return typed, nil
}

// source reads the raw value a rule starts from. concat reads its
// source_fields; everything else reads source_path, first as a flat key
// and then as a dotted path into nested objects.
func (m *Mapper) source(rule model.MappingRule, raw model.RawFields) (any, bool) {
	if rule.Transform == model.TransformConcat && len(rule.Options.SourceFields) > 0 {
		parts := make([]any, 0, len(rule.Options.SourceFields))
		for _, field := range rule.Options.SourceFields {
			v, ok := lookup(raw, field)
			if !ok {
				// a partial concatenation is not the attribute
				return nil, false
			}
			parts = append(parts, v)
		}
		return parts, true
	}
	if rule.SourcePath == "" {
		// custom transforms may work on the whole record
		if rule.Transform == model.TransformCustom {
			return map[string]any(raw), true
		}
		return nil, false
	}
	return lookup(raw, rule.SourcePath)
}

func lookup(raw model.RawFields, path string) (any, bool) {
	if v, ok := raw[path]; ok {
		return v, v != nil
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	v, err := pointerstructure.Get(map[string]any(raw), "/"+strings.ReplaceAll(path, ".", "/"))
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func (m *Mapper) compileRegexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.regexps.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.regexps.Store(pattern, re)
	return re, nil
}

func (m *Mapper) evaluator(expression string) (*bexpr.Evaluator, error) {
	if ev, ok := m.evaluators.Load(expression); ok {
		return ev.(*bexpr.Evaluator), nil
	}
	ev, err := bexpr.CreateEvaluator(expression)
	if err != nil {
		return nil, err
	}
	m.evaluators.Store(expression, ev)
	return ev, nil
}

func issueReason(err error) string {
	var mapErr *pip_errors.MappingError
	if errors.As(err, &mapErr) {
		if errors.Is(err, errFieldAbsent) {
			return errFieldAbsent.Error()
		}
		if mapErr.Err != nil {
			return mapErr.Reason + ": " + mapErr.Err.Error()
		}
		return mapErr.Reason
	}
	var tErr *pip_errors.TransformError
	if errors.As(err, &tErr) {
		return "transform " + tErr.Transform + ": " + tErr.Err.Error()
	}
	return err.Error()
}
