package params

import (
	"math"
	"testing"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

func TestDefaults(t *testing.T) {
	p := NewStore().Snapshot()
	if p.Rate != 1 || p.Pitch != 1 || p.Volume != 0.5 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.Text != "" || p.VoiceName != "" {
		t.Fatalf("expected empty text and voice, got %+v", p)
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n ", true},
		{" ", true},
		{"hello", false},
		{"  hi  ", false},
	}
	for _, tt := range tests {
		if got := IsBlank(tt.text); got != tt.want {
			t.Errorf("IsBlank(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSettersClamp(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Store, float64) float64
		in   float64
		want float64
	}{
		{"rate in range", (*Store).SetRate, 2.5, 2.5},
		{"rate low", (*Store).SetRate, 0, domain.MinRate},
		{"rate high", (*Store).SetRate, 10, domain.MaxRate},
		{"pitch in range", (*Store).SetPitch, 0.7, 0.7},
		{"pitch low", (*Store).SetPitch, -1, domain.MinPitch},
		{"pitch high", (*Store).SetPitch, 2.1, domain.MaxPitch},
		{"volume in range", (*Store).SetVolume, 0.3, 0.3},
		{"volume low", (*Store).SetVolume, -0.2, domain.MinVolume},
		{"volume high", (*Store).SetVolume, 1.5, domain.MaxVolume},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if got := tt.set(s, tt.in); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetRejectsNaN(t *testing.T) {
	s := NewStore()
	s.SetRate(1.7)
	if got := s.SetRate(math.NaN()); got != 1.7 {
		t.Fatalf("NaN should leave rate unchanged, got %v", got)
	}
	if got := s.Snapshot().Rate; got != 1.7 {
		t.Fatalf("snapshot rate = %v, want 1.7", got)
	}
}

func TestAdjustStepsWithoutDrift(t *testing.T) {
	s := NewStore()
	s.SetVolume(0)
	for i := 0; i < 3; i++ {
		s.AdjustVolume(Step)
	}
	if got := s.Snapshot().Volume; got != 0.3 {
		t.Fatalf("volume after three steps = %v, want 0.3", got)
	}

	for i := 0; i < 50; i++ {
		s.AdjustPitch(Step)
	}
	if got := s.Snapshot().Pitch; got != domain.MaxPitch {
		t.Fatalf("pitch should clamp at max, got %v", got)
	}

	for i := 0; i < 50; i++ {
		s.AdjustRate(-Step)
	}
	if got := s.Snapshot().Rate; got != domain.MinRate {
		t.Fatalf("rate should clamp at min, got %v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.SetText("first")
	snap := s.Snapshot()
	s.SetText("second")
	s.SetVoiceName("B")
	if snap.Text != "first" || snap.VoiceName != "" {
		t.Fatalf("snapshot changed after edits: %+v", snap)
	}
}
