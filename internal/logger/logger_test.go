package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{"off", LevelOff, false, false},
		{"normal", LevelNormal, false, true},
		{"verbose", LevelVerbose, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level, &buf)
			log.Debug("debug line")
			log.Info("info line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Fatalf("debug visible = %v, want %v (%q)", got, tt.wantDebug, out)
			}
			if got := strings.Contains(out, "info line"); got != tt.wantInfo {
				t.Fatalf("info visible = %v, want %v (%q)", got, tt.wantInfo, out)
			}
		})
	}
}

func TestWithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelNormal, &buf)
	child := root.With("catalog")

	child.Debug("hidden")
	root.SetLevel(LevelVerbose)
	child.Debug("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug leaked before level change: %q", out)
	}
	if !strings.Contains(out, "[DBG] ") || !strings.Contains(out, "catalog: shown 1") {
		t.Fatalf("expected prefixed debug line, got %q", out)
	}
	if child.GetLevel() != LevelVerbose {
		t.Fatalf("child level = %s, want verbose", child.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"debug", LevelVerbose, true},
		{"VERBOSE", LevelVerbose, true},
		{"info", LevelNormal, true},
		{"", LevelNormal, true},
		{"quiet", LevelOff, true},
		{"loud", LevelNormal, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
