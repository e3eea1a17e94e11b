package ngenlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("Debug logged below the Info minimum: %q", buf.String())
	}

	l.Info("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("Info line missing from output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "level=info") {
		t.Fatalf("output missing level field: %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelTrace)

	child := l.With("pass", "lower").With("index", 3)
	child.Trace("lowering instruction")

	out := buf.String()
	for _, want := range []string{"pass=lower", "index=3", "lowering instruction"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	// The parent Logger must not have picked up the child's fields.
	buf.Reset()
	l.Trace("parent line")
	if strings.Contains(buf.String(), "pass=lower") {
		t.Errorf("parent logger leaked child field: %q", buf.String())
	}
}

func TestSetLevelAndOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New(&first, LevelError)

	l.Warn("suppressed")
	if first.Len() != 0 {
		t.Fatalf("Warn logged below the Error minimum: %q", first.String())
	}

	l.SetLevel(LevelWarn)
	l.SetOutput(&second)
	l.Warn("now visible")
	if !strings.Contains(second.String(), "now visible") {
		t.Fatalf("Warn missing after SetLevel/SetOutput: %q", second.String())
	}
	if first.Len() != 0 {
		t.Fatalf("old output written to after SetOutput: %q", first.String())
	}
}
