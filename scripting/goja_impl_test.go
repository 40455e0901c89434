package scripting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgeline/forgeline/scripting"
)

type stubPrimitive struct {
	id   string
	kind string
	text string
	bbox [4]float64
}

func (p stubPrimitive) ID() string       { return p.id }
func (p stubPrimitive) Kind() string     { return p.kind }
func (p stubPrimitive) Text() string     { return p.text }
func (p stubPrimitive) BBox() [4]float64 { return p.bbox }

type stubDOM struct {
	prims map[string]stubPrimitive
	hits  []string
	logs  []string
}

func (d *stubDOM) GetPrimitive(id string) (scripting.PrimitiveProxy, error) {
	p, ok := d.prims[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (d *stubDOM) HitTestPoint(x, y float64) []string { return d.hits }

func (d *stubDOM) PageMeta() scripting.PageMeta {
	return scripting.PageMeta{DocID: "doc-1", PageIndex: 0, WidthPt: 612, HeightPt: 792}
}

func (d *stubDOM) Log(message string) { d.logs = append(d.logs, message) }

func TestExecuteReturnsValue(t *testing.T) {
	engine := scripting.NewEngine()
	val, err := engine.Execute(context.Background(), "6 * 7")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n, ok := val.(int64); !ok || n != 42 {
		t.Errorf("Expected 42, got %v", val)
	}
}

func TestExecuteContextInterrupt(t *testing.T) {
	engine := scripting.NewEngine()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Execute(ctx, "while(true){}")
	if err == nil {
		t.Fatal("Expected interrupt error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestDOMBindings(t *testing.T) {
	engine := scripting.NewEngine()
	dom := &stubDOM{
		prims: map[string]stubPrimitive{
			"t1": {id: "t1", kind: "text", text: "Invoice total", bbox: [4]float64{72, 100, 300, 114}},
		},
		hits: []string{"t1"},
	}
	if err := engine.RegisterDOM(dom); err != nil {
		t.Fatalf("RegisterDOM: %v", err)
	}

	val, err := engine.Execute(context.Background(), `getPrimitive("t1").text`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if val != "Invoice total" {
		t.Errorf("Expected primitive text, got %v", val)
	}

	val, err = engine.Execute(context.Background(), `getPrimitive("missing")`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if val != nil {
		t.Errorf("Expected null for missing primitive, got %v", val)
	}

	val, err = engine.Execute(context.Background(), `hitTest(100, 107)[0]`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if val != "t1" {
		t.Errorf("Expected hit id t1, got %v", val)
	}

	val, err = engine.Execute(context.Background(), `page.widthPt`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if w, ok := val.(float64); !ok || w != 612 {
		t.Errorf("Expected page width 612, got %v", val)
	}

	if _, err := engine.Execute(context.Background(), `log("checked")`); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(dom.logs) != 1 || dom.logs[0] != "checked" {
		t.Errorf("Expected log line, got %v", dom.logs)
	}
}

func TestBindHostFunction(t *testing.T) {
	engine := scripting.NewEngine()
	var got []string
	if err := engine.Bind("record", func(s string) { got = append(got, s) }); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := engine.Execute(context.Background(), `record("a"); record("b")`); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected recorded calls, got %v", got)
	}
}
