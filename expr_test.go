package boxon

import "testing"

type evalSelf struct {
	Count int
	Mode  string
}

func newTestEvaluator(t *testing.T, context map[string]any) *Evaluator {
	t.Helper()
	e, err := newEvaluator(context)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEvalBooleanSelfField(t *testing.T) {
	e := newTestEvaluator(t, nil)
	self := &evalSelf{Count: 3, Mode: "x"}
	scope := &Scope{Self: self, Root: self}

	ok, err := e.EvalBoolean(`self.Count > 2`, scope)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected true")
	}

	ok, err = e.EvalBoolean(`self.Mode == "x" and self.Count == 3`, scope)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected true for word-form and")
	}
}

func TestEvalBooleanChoicePrefix(t *testing.T) {
	e := newTestEvaluator(t, nil)
	prefix := uint64(2)
	scope := &Scope{ChoicePrefix: &prefix}

	ok, err := e.EvalBoolean(`prefix==2`, scope)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected true")
	}

	ok, err = e.EvalBoolean(`choice_prefix==3`, scope)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected false")
	}
}

func TestEvalSizeLiteralFastPath(t *testing.T) {
	e := newTestEvaluator(t, nil)
	n, err := e.EvalSize("42", &Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 42 {
		t.Errorf("got %d, want 42", n)
	}
}

func TestEvalSizeFromContextFunction(t *testing.T) {
	e := newTestEvaluator(t, map[string]any{
		"double": func(n int64) int64 { return n * 2 },
	})
	scope := &Scope{Context: map[string]any{}}
	n, err := e.EvalSize("double(5)", scope)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("got %d, want 10", n)
	}
}

func TestEvalSizeRejectsEmptyExpression(t *testing.T) {
	e := newTestEvaluator(t, nil)
	if _, err := e.EvalSize("", &Scope{}); err == nil {
		t.Fatal("expected error for empty size expression")
	}
}

func TestEvalSizeNegativeRejected(t *testing.T) {
	e := newTestEvaluator(t, nil)
	if _, err := e.EvalSize("-1", &Scope{}); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestEvalValueContextVariable(t *testing.T) {
	e := newTestEvaluator(t, map[string]any{"version": int64(7)})
	scope := &Scope{Context: map[string]any{"version": int64(7)}}
	v, err := e.EvalValue("version", scope)
	if err != nil {
		t.Fatal(err)
	}
	if v.(int64) != 7 {
		t.Errorf("got %v, want 7", v)
	}
}
