package webhook

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type cyclicNode struct {
	Name string
	Next *cyclicNode
}

func TestSanitizeBreaksPointerCycle(t *testing.T) {
	a := &cyclicNode{Name: "a"}
	b := &cyclicNode{Name: "b", Next: a}
	a.Next = b

	out := Sanitize(a)
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("sanitized value must be JSON-encodable: %v", err)
	}

	m := out.(map[string]any)
	inner := m["Next"].(map[string]any)
	if inner["Next"] != "[circular reference]" {
		t.Errorf("cycle was not broken: %+v", out)
	}
}

func TestSanitizeBreaksMapCycle(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m

	out := Sanitize(m)
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("sanitized value must be JSON-encodable: %v", err)
	}
	if out.(map[string]any)["self"] != "[circular reference]" {
		t.Errorf("map cycle was not broken: %+v", out)
	}
}

func TestSanitizeFlattensErrors(t *testing.T) {
	out := Sanitize(map[string]any{"err": errors.New("it broke")})
	if out.(map[string]any)["err"] != "it broke" {
		t.Errorf("errors must become their message: %+v", out)
	}
}

func TestSanitizeStructUsesJSONNames(t *testing.T) {
	type payload struct {
		PublicName string `json:"publicName"`
		Hidden     string `json:"-"`
		Bare       int
		private    string
	}
	out := Sanitize(payload{PublicName: "x", Hidden: "secret", Bare: 7, private: "p"})

	m := out.(map[string]any)
	if m["publicName"] != "x" {
		t.Errorf("json tag name must be used: %+v", m)
	}
	if _, ok := m["Hidden"]; ok {
		t.Errorf("json:\"-\" fields must be dropped: %+v", m)
	}
	if m["Bare"] != 7 {
		t.Errorf("untagged fields keep their name: %+v", m)
	}
	if _, ok := m["private"]; ok {
		t.Errorf("unexported fields must be dropped: %+v", m)
	}
}

func TestSanitizeScalarsAndBytes(t *testing.T) {
	if got := Sanitize("hello"); got != "hello" {
		t.Errorf("strings must pass through, got %v", got)
	}
	if got := Sanitize(nil); got != nil {
		t.Errorf("nil must pass through, got %v", got)
	}
	raw := []byte{1, 2, 3}
	if got := Sanitize(raw); !reflect.DeepEqual(got, raw) {
		t.Errorf("byte slices must pass through, got %v", got)
	}
}

func TestSanitizeSlicesAndArrays(t *testing.T) {
	out := Sanitize([]any{"a", 1, errors.New("bad")})
	want := []any{"a", 1, "bad"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
}

func TestSanitizeDepthBound(t *testing.T) {
	type deep struct {
		Child *deep
	}
	root := &deep{}
	node := root
	for i := 0; i < sanitizeMaxDepth+10; i++ {
		node.Child = &deep{}
		node = node.Child
	}

	out := Sanitize(root)
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("deeply nested value must still be encodable: %v", err)
	}
}

func TestSanitizeDropsFunctions(t *testing.T) {
	out := Sanitize(map[string]any{"fn": func() {}})
	if out.(map[string]any)["fn"] != "[func]" {
		t.Errorf("functions must be replaced with a placeholder: %+v", out)
	}
}
