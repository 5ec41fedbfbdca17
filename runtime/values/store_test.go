package values

import (
	"errors"
	"math"
	"testing"
)

func newTestStore(t *testing.T, keys ...Key) *Store {
	t.Helper()
	store := NewStore(len(keys))
	for _, key := range keys {
		if err := store.Register(key); err != nil {
			t.Fatalf("Register %q: %v", key, err)
		}
	}
	return store
}

func TestSetBumpsVersionAndReturnsPrevious(t *testing.T) {
	store := newTestStore(t, "temp")
	store.Seal()

	if !store.IsUnset("temp") {
		t.Fatal("expected fresh slot to be unset")
	}
	prev, err := store.Set("temp", Float(21.5))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if prev != 0 {
		t.Fatalf("expected previous version 0, got %d", prev)
	}
	v, version := store.Get("temp")
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	if f, ok := v.AsFloat(); !ok || f != 21.5 {
		t.Fatalf("unexpected value %v", v)
	}
	prev, err = store.Set("temp", Float(22.0))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if prev != 1 {
		t.Fatalf("expected previous version 1, got %d", prev)
	}
}

func TestSetUnknownKey(t *testing.T) {
	store := newTestStore(t, "temp")
	store.Seal()
	if _, err := store.Set("pressure", Float(1)); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestRegisterAfterSealFails(t *testing.T) {
	store := newTestStore(t, "temp")
	store.Seal()
	if err := store.Register("late"); err == nil {
		t.Fatal("expected error registering after seal")
	}
}

func TestSetRejectsNonFiniteFloats(t *testing.T) {
	store := newTestStore(t, "temp")
	store.Seal()
	if _, err := store.Set("temp", Float(math.NaN())); err == nil {
		t.Fatal("expected error for NaN")
	}
	if _, err := store.Set("temp", Float(math.Inf(1))); err == nil {
		t.Fatal("expected error for +Inf")
	}
	if store.Version("temp") != 0 {
		t.Fatal("rejected write must not bump the version")
	}
}

func TestDirtyObserversAscendingAndDrained(t *testing.T) {
	store := newTestStore(t, "temp", "led")
	if err := store.Observe("temp", 3); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if err := store.Observe("temp", 1); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if err := store.Observe("led", 2); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	store.Seal()

	if _, err := store.Set("temp", Float(1)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Set("led", Bool(true)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got := store.DrainDirty()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if again := store.DrainDirty(); again != nil {
		t.Fatalf("expected drained set to be empty, got %v", again)
	}
}

func TestMarkDirtyForStyleChange(t *testing.T) {
	store := newTestStore(t, "temp")
	store.Seal()
	store.MarkDirty(7)
	got := store.DrainDirty()
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected [7], got %v", got)
	}
}

func TestValueTaggedUnion(t *testing.T) {
	cases := []struct {
		value Value
		kind  Kind
		text  string
	}{
		{Bool(true), KindBool, "true"},
		{Int(-4), KindInt, "-4"},
		{Float(2.5), KindFloat, "2.5"},
		{Text("hi"), KindText, "hi"},
		{Enum(2), KindEnum, "2"},
		{Value{}, KindUnset, "unset"},
	}
	for _, tc := range cases {
		if tc.value.Kind() != tc.kind {
			t.Fatalf("expected kind %v, got %v", tc.kind, tc.value.Kind())
		}
		if tc.value.String() != tc.text {
			t.Fatalf("expected %q, got %q", tc.text, tc.value.String())
		}
	}
	if n, ok := Enum(3).Number(); !ok || n != 3 {
		t.Fatalf("enum number coercion failed: %v %v", n, ok)
	}
	if _, ok := Text("x").Number(); ok {
		t.Fatal("text must not coerce to a number")
	}
	long := Text(string(make([]byte, 2*MaxTextLen)))
	if s, _ := long.AsText(); len(s) != MaxTextLen {
		t.Fatalf("expected text truncated to %d bytes, got %d", MaxTextLen, len(s))
	}
}
