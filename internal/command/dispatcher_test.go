package command

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestDispatch_UnknownCommand(t *testing.T) {
	d := NewDispatcher()

	result := d.Dispatch(context.Background(), "teleport", nil)

	if result.Success {
		t.Error("Dispatch() success = true, want false")
	}
	if want := "Unknown command: teleport"; result.Message != want {
		t.Errorf("Dispatch() message = %q, want %q", result.Message, want)
	}
}

func TestDispatch_RegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", func(_ context.Context, payload map[string]any) Result {
		return OKData("ok", payload)
	})

	result := d.Dispatch(context.Background(), "echo", []byte(`{"x":1}`))

	if !result.Success {
		t.Fatalf("Dispatch() success = false, message = %q", result.Message)
	}
	if result.Data["x"] != float64(1) {
		t.Errorf("Dispatch() data = %v, want x=1", result.Data)
	}
}

func TestDispatch_EmptyPayload(t *testing.T) {
	d := NewDispatcher()
	d.Register("noop", func(_ context.Context, payload map[string]any) Result {
		if payload == nil {
			t.Error("handler received nil payload")
		}
		return OK("ok")
	})

	for _, raw := range [][]byte{nil, {}} {
		if result := d.Dispatch(context.Background(), "noop", raw); !result.Success {
			t.Errorf("Dispatch(%q) success = false", raw)
		}
	}
}

func TestDispatch_MalformedPayload(t *testing.T) {
	d := NewDispatcher()
	d.Register("strict", func(_ context.Context, _ map[string]any) Result {
		t.Error("handler invoked for malformed payload")
		return OK("ok")
	})

	result := d.Dispatch(context.Background(), "strict", []byte(`{not json`))

	if result.Success {
		t.Error("Dispatch() success = true, want false")
	}
	if !strings.HasPrefix(result.Message, "Error:") {
		t.Errorf("Dispatch() message = %q, want Error: prefix", result.Message)
	}
}

func TestDispatch_HandlerPanic(t *testing.T) {
	d := NewDispatcher()
	d.Register("boom", func(_ context.Context, _ map[string]any) Result {
		panic("handler exploded")
	})

	result := d.Dispatch(context.Background(), "boom", nil)

	if result.Success {
		t.Error("Dispatch() success = true, want false")
	}
	if !strings.HasPrefix(result.Message, "Error:") {
		t.Errorf("Dispatch() message = %q, want Error: prefix", result.Message)
	}
}

func TestNames_Sorted(t *testing.T) {
	d := NewDispatcher()
	handler := func(_ context.Context, _ map[string]any) Result { return OK("ok") }
	d.Register("zulu", handler)
	d.Register("alpha", handler)
	d.Register("mike", handler)

	got := d.Names()
	want := []string{"alpha", "mike", "zulu"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
