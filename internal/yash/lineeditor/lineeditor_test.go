package lineeditor

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadLineYieldsEachLineThenFalse(t *testing.T) {
	in := strings.NewReader("echo hi\nls -l\n")
	var out bytes.Buffer
	e := New(in, &out, "# ")

	line, ok := e.ReadLine()
	if !ok || line != "echo hi" {
		t.Fatalf("got (%q, %v), want (%q, true)", line, ok, "echo hi")
	}

	line, ok = e.ReadLine()
	if !ok || line != "ls -l" {
		t.Fatalf("got (%q, %v), want (%q, true)", line, ok, "ls -l")
	}

	if _, ok := e.ReadLine(); ok {
		t.Fatalf("expected end-of-input sentinel after last line")
	}

	if got, want := out.String(), "# # # "; got != want {
		t.Fatalf("prompt output = %q, want %q", got, want)
	}
}
