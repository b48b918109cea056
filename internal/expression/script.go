package expression

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-scada-flow/internal/logging"
	"go-scada-flow/internal/models"

	lua "github.com/yuin/gopher-lua"
)

// Script is an operator control program run at the start of every tick. It
// sees the plant state from the end of the previous tick and answers with
// valve commands.
type Script struct {
	name      string
	evaluator *Evaluator
	chunk     *lua.LFunction
	when      string
	timeout   time.Duration
	mu        sync.Mutex
}

// ScriptOption configures a Script
type ScriptOption func(*Script)

// WithTimeout bounds a single run of the script. Zero leaves the caller's
// context as the only limit.
func WithTimeout(d time.Duration) ScriptOption {
	return func(s *Script) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCondition gates the script on a Lua boolean expression such as
// "tanks.main.level > 0.1". While it is false the script issues no commands.
func WithCondition(expr string) ScriptOption {
	return func(s *Script) { s.when = expr }
}

// NewScript compiles source into a script. params become read-only globals.
func NewScript(name, source string, params map[string]interface{}, logger logging.Logger, opts ...ScriptOption) (*Script, error) {
	evaluator := NewEvaluator(logger)
	chunk, err := evaluator.Compile(name, source)
	if err != nil {
		evaluator.Close()
		return nil, err
	}
	evaluator.SetGlobals(params)
	s := &Script{name: name, evaluator: evaluator, chunk: chunk}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadScript reads and compiles a Lua script file
func LoadScript(path string, params map[string]interface{}, logger logging.Logger, opts ...ScriptOption) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %q: %w", path, err)
	}
	return NewScript(filepath.Base(path), string(data), params, logger, opts...)
}

// Name returns the script name
func (s *Script) Name() string {
	return s.name
}

// Commands runs the script against state and returns valve commands. A run
// that outlives ctx or the script timeout is interrupted and reported as an
// error.
func (s *Script) Commands(ctx context.Context, state models.State) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluator == nil {
		return nil, fmt.Errorf("script %s is closed", s.name)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	env := ContextFromState(state)
	if s.when != "" {
		ok, err := s.evaluator.EvaluateCondition(ctx, s.when, env)
		if err != nil {
			return nil, fmt.Errorf("script %s condition: %w", s.name, err)
		}
		if !ok {
			return nil, nil
		}
	}

	commands, err := s.evaluator.RunCommands(ctx, s.chunk, env)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	if len(commands) > 0 {
		s.evaluator.logger.Debug(ctx, "script commands",
			logging.String("script", s.name),
			logging.Strings("valves", SortedKeys(commands)))
	}
	return commands, nil
}

// Close releases the Lua state
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluator != nil {
		s.evaluator.Close()
		s.evaluator = nil
	}
}
