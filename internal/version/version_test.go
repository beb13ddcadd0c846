package version

import (
	"regexp"
	"testing"
)

func TestGet(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+`).MatchString(Get()) {
		t.Errorf("Get() = %q, want a semantic version", Get())
	}
}

func TestString(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = ""
	if got := String(); got != Get() {
		t.Errorf("String() = %q, want %q", got, Get())
	}

	Commit = "0123456789abcdef"
	if got, want := String(), Get()+" (0123456)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
