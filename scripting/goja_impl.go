package scripting

import (
	"context"

	"github.com/dop251/goja"
)

type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	vm := goja.New()
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) Bind(name string, value interface{}) error {
	return e.vm.Set(name, value)
}

func (e *GojaEngine) RegisterDOM(dom DocumentDOM) error {
	meta := dom.PageMeta()
	pageObj := e.vm.NewObject()
	for key, value := range map[string]interface{}{
		"docId":     meta.DocID,
		"pageIndex": meta.PageIndex,
		"widthPt":   meta.WidthPt,
		"heightPt":  meta.HeightPt,
		"rotation":  meta.Rotation,
	} {
		if err := pageObj.Set(key, value); err != nil {
			return err
		}
	}
	if err := e.vm.Set("page", pageObj); err != nil {
		return err
	}

	if err := e.vm.Set("log", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		dom.Log(msg)
		return goja.Undefined()
	}); err != nil {
		return err
	}

	if err := e.vm.Set("getPrimitive", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		id := call.Arguments[0].String()
		prim, err := dom.GetPrimitive(id)
		if err != nil || prim == nil {
			return goja.Null()
		}

		obj := e.vm.NewObject()
		obj.Set("id", prim.ID())
		obj.Set("kind", prim.Kind())
		obj.Set("text", prim.Text())
		bbox := prim.BBox()
		obj.Set("bbox", bbox[:])
		return obj
	}); err != nil {
		return err
	}

	return e.vm.Set("hitTest", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return e.vm.ToValue([]string{})
		}
		x := call.Arguments[0].ToFloat()
		y := call.Arguments[1].ToFloat()
		return e.vm.ToValue(dom.HitTestPoint(x, y))
	})
}
