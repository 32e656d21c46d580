// Package handler provides reflection-based handler execution for flowline.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Handler holds metadata about a registered job handler.
type Handler struct {
	Fn         reflect.Value
	ArgsType   reflect.Type
	HasContext bool
	ReturnsVal bool
	Timeout    time.Duration
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// New creates a Handler from a function. The function must have signature
// func(ctx context.Context, args T) error or func(ctx context.Context, args T)
// (R, error). Handlers returning a value have it serialized and persisted as
// the job's output.
func New(fn any) (*Handler, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || (fnVal.Kind() == reflect.Func && fnVal.IsNil()) {
		return nil, fmt.Errorf("handler function cannot be nil")
	}

	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function")
	}

	h := &Handler{Fn: fnVal}

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 2 {
		return nil, fmt.Errorf("handler must have 1-2 arguments")
	}

	argIdx := 0
	if fnType.In(0).Implements(ctxType) {
		h.HasContext = true
		argIdx = 1
	}
	if argIdx < numIn {
		h.ArgsType = fnType.In(argIdx)
	}

	switch fnType.NumOut() {
	case 1:
		if !fnType.Out(0).Implements(errType) {
			return nil, fmt.Errorf("handler must return error")
		}
	case 2:
		if !fnType.Out(1).Implements(errType) {
			return nil, fmt.Errorf("handler must return (T, error)")
		}
		h.ReturnsVal = true
	default:
		return nil, fmt.Errorf("handler must return error or (T, error)")
	}

	return h, nil
}

// Execute runs the handler with the given context and arguments. When the
// handler returns a value, Execute returns it serialized as JSON so the
// worker can persist it through the bound store.
func (h *Handler) Execute(ctx context.Context, argsJSON []byte) ([]byte, error) {
	if !h.Fn.IsValid() || h.Fn.IsNil() {
		return nil, fmt.Errorf("handler function is nil or invalid")
	}

	var args []reflect.Value
	if h.HasContext {
		args = append(args, reflect.ValueOf(ctx))
	}
	if h.ArgsType != nil {
		argVal := reflect.New(h.ArgsType)
		if err := json.Unmarshal(argsJSON, argVal.Interface()); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
		args = append(args, argVal.Elem())
	}

	results := h.Fn.Call(args)

	if !h.ReturnsVal {
		if !results[0].IsNil() {
			return nil, results[0].Interface().(error)
		}
		return nil, nil
	}

	if !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}

	output, err := json.Marshal(results[0].Interface())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal handler result: %w", err)
	}
	return output, nil
}
