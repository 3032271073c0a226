package shell

import (
	"context"
	"testing"
)

func noop(context.Context, *Service, []string) error { return nil }

func TestRegisterRejectsBadCommands(t *testing.T) {
	r := newRegistry()
	if err := r.register(command{Name: "", Run: noop}); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := r.register(command{Name: "x"}); err == nil {
		t.Fatal("nil handler accepted")
	}
	if err := r.register(command{Name: "x", Run: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.register(command{Name: "x", Run: noop}); err == nil {
		t.Fatal("duplicate name accepted")
	}
	if err := r.register(command{Name: "y", Aliases: []string{"x"}, Run: noop}); err == nil {
		t.Fatal("alias colliding with existing name accepted")
	}
}

func TestResolveFindsAliases(t *testing.T) {
	r := newRegistry()
	if err := r.register(command{Name: "exit", Aliases: []string{"quit"}, Run: noop}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.resolve("exit"); !ok {
		t.Fatal("primary name not resolvable")
	}
	cmd, ok := r.resolve("quit")
	if !ok {
		t.Fatal("alias not resolvable")
	}
	if cmd.Name != "exit" {
		t.Fatalf("alias resolved to %q, want exit", cmd.Name)
	}
	if _, ok := r.resolve("halt"); ok {
		t.Fatal("unknown name resolved")
	}
}

func TestOrderedKeepsRegistrationOrder(t *testing.T) {
	r := newRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := r.register(command{Name: name, Run: noop}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	got := r.ordered()
	want := []string{"charlie", "alpha", "bravo"}
	for i, cmd := range got {
		if cmd.Name != want[i] {
			t.Fatalf("ordered()[%d] = %q, want %q", i, cmd.Name, want[i])
		}
	}
	names := r.names()
	wantSorted := []string{"alpha", "bravo", "charlie"}
	for i, name := range names {
		if name != wantSorted[i] {
			t.Fatalf("names()[%d] = %q, want %q", i, name, wantSorted[i])
		}
	}
}
