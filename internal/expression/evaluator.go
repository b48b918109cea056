package expression

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"

	lua "github.com/yuin/gopher-lua"
)

// EvaluationContext holds the plant state exposed to Lua
type EvaluationContext struct {
	Tick      uint64                      // Completed ticks
	PumpAngle float64                     // Pump phase in degrees
	Tanks     map[string]models.TankState // Tank ID -> state
	Valves    map[string]bool             // Valve ID -> open
}

// NewEvaluationContext creates a new evaluation context
func NewEvaluationContext() *EvaluationContext {
	return &EvaluationContext{
		Tanks:  make(map[string]models.TankState),
		Valves: make(map[string]bool),
	}
}

// ContextFromState builds an evaluation context from a network snapshot
func ContextFromState(state models.State) *EvaluationContext {
	ctx := NewEvaluationContext()
	ctx.Tick = state.Tick
	ctx.PumpAngle = state.PumpAngle
	for _, t := range state.Tanks {
		ctx.Tanks[t.ID] = t
	}
	for _, v := range state.Valves {
		ctx.Valves[v.ID] = v.Open
	}
	return ctx
}

// Evaluator handles expression and script evaluation using gopher-lua. A
// single Lua state is kept for its lifetime, so scripts may carry globals
// from one tick to the next. It is not safe for concurrent use.
type Evaluator struct {
	luaState *lua.LState
	logger   logging.Logger
	pending  map[string]bool
}

// NewEvaluator creates a new evaluator with the base, table, string and math
// libraries loaded. Nothing that reaches the filesystem is exposed.
func NewEvaluator(logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Noop()
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	e := &Evaluator{
		luaState: L,
		logger:   logger,
		pending:  make(map[string]bool),
	}
	e.registerFunctions()
	return e
}

// Close closes the Lua state
func (e *Evaluator) Close() {
	if e.luaState != nil {
		e.luaState.Close()
		e.luaState = nil
	}
}

// GetGlobalValue returns the current Lua global converted to Go, or nil when undefined
func (e *Evaluator) GetGlobalValue(name string) interface{} {
	if e.luaState == nil {
		return nil
	}
	lv := e.luaState.GetGlobal(name)
	if lv == lua.LNil {
		return nil
	}
	return e.luaValueToGo(lv)
}

// EvaluateCondition evaluates a boolean expression such as "tanks.main.level < 0.2"
func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, env *EvaluationContext) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	result, err := e.EvaluateExpression(ctx, expression, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' did not return a boolean value, got %T", expression, result)
	}
	return b, nil
}

// EvaluateExpression evaluates a single Lua expression and returns the result.
// Evaluation is abandoned with an error once ctx is done.
func (e *Evaluator) EvaluateExpression(ctx context.Context, expression string, env *EvaluationContext) (interface{}, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("expression cannot be empty")
	}
	if err := e.setupLuaContext(env); err != nil {
		return nil, fmt.Errorf("failed to setup Lua context: %w", err)
	}

	code := expression
	if !strings.HasPrefix(strings.TrimSpace(expression), "return") {
		code = "return " + expression
	}
	fn, err := e.luaState.LoadString(code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression '%s': %w", expression, err)
	}
	return e.call(ctx, fn)
}

// SetGlobals publishes fixed script parameters as Lua globals
func (e *Evaluator) SetGlobals(vars map[string]interface{}) {
	for name, value := range vars {
		e.luaState.SetGlobal(name, e.goValueToLua(value))
	}
}

// Compile parses a script chunk once so it can be run every tick
func (e *Evaluator) Compile(name, source string) (*lua.LFunction, error) {
	fn, err := e.luaState.Load(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script %s: %w", name, err)
	}
	return fn, nil
}

// RunCommands runs a compiled chunk and collects valve commands. Commands come
// from open()/close()/set() calls and from a returned table of valve = bool;
// the returned table wins on conflict. A chunk still running when ctx is done
// is interrupted and reported as an error.
func (e *Evaluator) RunCommands(ctx context.Context, fn *lua.LFunction, env *EvaluationContext) (map[string]bool, error) {
	if err := e.setupLuaContext(env); err != nil {
		return nil, fmt.Errorf("failed to setup Lua context: %w", err)
	}
	e.pending = make(map[string]bool)

	result, err := e.call(ctx, fn)
	if err != nil {
		e.pending = make(map[string]bool)
		return nil, err
	}

	commands := e.pending
	e.pending = make(map[string]bool)

	switch v := result.(type) {
	case nil:
	case map[string]interface{}:
		for valve, raw := range v {
			open, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("command for valve %s must be a boolean, got %T", valve, raw)
			}
			commands[valve] = open
		}
	default:
		return nil, fmt.Errorf("script must return a table of valve commands or nil, got %T", result)
	}
	return commands, nil
}

// call runs fn in protected mode and returns its single result
func (e *Evaluator) call(ctx context.Context, fn *lua.LFunction) (interface{}, error) {
	L := e.luaState
	if ctx != nil {
		L.SetContext(ctx)
		defer L.RemoveContext()
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("Lua execution error: %w", err)
	}
	result := L.Get(-1)
	L.Pop(1)
	return e.luaValueToGo(result), nil
}

// setupLuaContext publishes the plant state as Lua globals
func (e *Evaluator) setupLuaContext(env *EvaluationContext) error {
	if env == nil {
		env = NewEvaluationContext()
	}
	L := e.luaState

	L.SetGlobal("tick", lua.LNumber(env.Tick))
	L.SetGlobal("pump_angle", lua.LNumber(env.PumpAngle))

	tanks := L.NewTable()
	for id, t := range env.Tanks {
		tt := L.NewTable()
		tt.RawSetString("id", lua.LString(t.ID))
		tt.RawSetString("name", lua.LString(t.Name))
		tt.RawSetString("amount", lua.LNumber(t.Amount))
		tt.RawSetString("capacity", lua.LNumber(t.Capacity))
		tt.RawSetString("level", lua.LNumber(t.Level))
		tt.RawSetString("empty", lua.LBool(t.Amount <= models.Epsilon))
		tt.RawSetString("full", lua.LBool(t.Amount >= t.Capacity-models.Epsilon))
		tanks.RawSetString(id, tt)
	}
	L.SetGlobal("tanks", tanks)

	valves := L.NewTable()
	for id, open := range env.Valves {
		valves.RawSetString(id, lua.LBool(open))
	}
	L.SetGlobal("valves", valves)

	return nil
}

// goValueToLua converts a Go value to a Lua value
func (e *Evaluator) goValueToLua(value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []interface{}:
		table := e.luaState.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, e.goValueToLua(item))
		}
		return table
	case map[string]interface{}:
		table := e.luaState.NewTable()
		for key, val := range v {
			table.RawSetString(key, e.goValueToLua(val))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// luaValueToGo converts a Lua value to a Go value
func (e *Evaluator) luaValueToGo(value lua.LValue) interface{} {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		num := float64(v)
		if num == float64(int64(num)) {
			return int(num)
		}
		return num
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if e.isLuaArray(v) {
			return e.luaTableToSlice(v)
		}
		return e.luaTableToMap(v)
	default:
		return v.String()
	}
}

// isLuaArray checks if a Lua table has consecutive integer keys starting from 1
func (e *Evaluator) isLuaArray(table *lua.LTable) bool {
	length := table.Len()
	if length == 0 {
		return false
	}
	array := true
	table.ForEach(func(key, _ lua.LValue) {
		n, ok := key.(lua.LNumber)
		if !ok || int(n) < 1 || int(n) > length {
			array = false
		}
	})
	return array
}

func (e *Evaluator) luaTableToSlice(table *lua.LTable) []interface{} {
	length := table.Len()
	result := make([]interface{}, length)
	for i := 1; i <= length; i++ {
		result[i-1] = e.luaValueToGo(table.RawGetInt(i))
	}
	return result
}

func (e *Evaluator) luaTableToMap(table *lua.LTable) map[string]interface{} {
	result := make(map[string]interface{})
	table.ForEach(func(key, value lua.LValue) {
		result[fmt.Sprintf("%v", e.luaValueToGo(key))] = e.luaValueToGo(value)
	})
	return result
}

// registerFunctions registers the plant helpers in the Lua environment
func (e *Evaluator) registerFunctions() {
	L := e.luaState

	L.SetGlobal("print", L.NewFunction(e.luaPrint))
	L.SetGlobal("tonumber", L.NewFunction(e.luaToNumber))

	L.SetGlobal("open", L.NewFunction(func(L *lua.LState) int {
		e.pending[L.CheckString(1)] = true
		return 0
	}))
	L.SetGlobal("close", L.NewFunction(func(L *lua.LState) int {
		e.pending[L.CheckString(1)] = false
		return 0
	}))
	L.SetGlobal("set", L.NewFunction(func(L *lua.LState) int {
		e.pending[L.CheckString(1)] = L.ToBool(2)
		return 0
	}))
	L.SetGlobal("between", L.NewFunction(e.luaBetween))
}

func (e *Evaluator) luaPrint(L *lua.LState) int {
	args := make([]string, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		args[i-1] = L.Get(i).String()
	}
	e.logger.Debug(context.Background(), "script output", logging.String("text", strings.Join(args, "\t")))
	return 0
}

func (e *Evaluator) luaToNumber(L *lua.LState) int {
	switch v := L.Get(1).(type) {
	case lua.LNumber:
		L.Push(v)
	case lua.LString:
		if num, err := strconv.ParseFloat(string(v), 64); err == nil {
			L.Push(lua.LNumber(num))
		} else {
			L.Push(lua.LNil)
		}
	default:
		L.Push(lua.LNil)
	}
	return 1
}

// between(x, lo, hi) reports lo <= x <= hi
func (e *Evaluator) luaBetween(L *lua.LState) int {
	x := L.CheckNumber(1)
	lo := L.CheckNumber(2)
	hi := L.CheckNumber(3)
	L.Push(lua.LBool(x >= lo && x <= hi))
	return 1
}

// SortedKeys returns the command valve IDs in a stable order
func SortedKeys(commands map[string]bool) []string {
	keys := make([]string, 0, len(commands))
	for k := range commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
