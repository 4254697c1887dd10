// mapper/custom.go
package mapper

import (
	"fmt"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/controlcoreio/control-core-012025-sub001/model"
)

const transformEntryPoint = "transform"

// program is a compiled custom script. Its globals are frozen after
// initialisation so calls cannot leak state into each other.
type program struct {
	fn starlark.Callable
}

func (m *Mapper) newThread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name:  name,
		Print: func(*starlark.Thread, string) {},
		// no Load: scripts cannot import anything
	}
	thread.SetMaxExecutionSteps(m.maxSteps)
	return thread
}

// compile parses a script and checks that it defines transform(value, fields).
func (m *Mapper) compile(script string) (*program, error) {
	if p, ok := m.programs.Load(script); ok {
		return p.(*program), nil
	}
	_, prog, err := starlark.SourceProgramOptions(&syntax.FileOptions{}, "transform.star", script, func(string) bool { return false })
	if err != nil {
		return nil, err
	}
	globals, err := prog.Init(m.newThread("compile"), nil)
	if err != nil {
		return nil, err
	}
	globals.Freeze()
	fn, ok := globals[transformEntryPoint].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("script must define %s(value, fields)", transformEntryPoint)
	}
	p := &program{fn: fn}
	m.programs.Store(script, p)
	return p, nil
}

// custom runs a script or a registered function. Script errors, exceeded
// budgets and panics are all returned as errors.
func (m *Mapper) custom(rule model.MappingRule, value any, raw model.RawFields) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("custom transform panicked: %v", r)
		}
	}()

	if name := rule.Options.Function; name != "" {
		fn, ok := m.function(name)
		if !ok {
			return nil, fmt.Errorf("function %q is not registered", name)
		}
		fields := make(model.RawFields, len(raw))
		for k, v := range raw {
			fields[k] = v
		}
		return fn(value, fields)
	}

	p, err := m.compile(rule.Options.Script)
	if err != nil {
		return nil, err
	}
	sv, err := toStarlark(value)
	if err != nil {
		return nil, err
	}
	sf, err := toStarlark(map[string]any(raw))
	if err != nil {
		return nil, err
	}
	sv.Freeze()
	sf.Freeze()

	thread := m.newThread(transformEntryPoint)
	timer := time.AfterFunc(m.timeout, func() { thread.Cancel("custom transform timed out") })
	defer timer.Stop()

	result, err := starlark.Call(thread, p.fn, starlark.Tuple{sv, sf}, nil)
	if err != nil {
		return nil, err
	}
	return fromStarlark(result)
}

func toStarlark(v any) (starlark.Value, error) {
	switch t := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(t), nil
	case string:
		return starlark.String(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int32:
		return starlark.MakeInt64(int64(t)), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case uint64:
		return starlark.MakeUint64(t), nil
	case float32:
		return starlark.Float(t), nil
	case float64:
		return starlark.Float(t), nil
	case time.Time:
		return starlark.String(t.Format(time.RFC3339Nano)), nil
	case []string:
		items := make([]starlark.Value, len(t))
		for i, s := range t {
			items[i] = starlark.String(s)
		}
		return starlark.NewList(items), nil
	case []any:
		items := make([]starlark.Value, len(t))
		for i, item := range t {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(t))
		for _, k := range keys {
			sv, err := toStarlark(t[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	case model.RawFields:
		return toStarlark(map[string]any(t))
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func fromStarlark(v starlark.Value) (any, error) {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(t), nil
	case starlark.String:
		return string(t), nil
	case starlark.Int:
		if i, ok := t.Int64(); ok {
			return float64(i), nil
		}
		return nil, fmt.Errorf("integer %s out of range", t.String())
	case starlark.Float:
		return float64(t), nil
	case *starlark.List:
		out := make([]any, t.Len())
		for i := range out {
			item, err := fromStarlark(t.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, len(t))
		for i, item := range t {
			gv, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out[i] = gv
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, t.Len())
		for _, item := range t.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", item[0].String())
			}
			gv, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(k)] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type())
	}
}
