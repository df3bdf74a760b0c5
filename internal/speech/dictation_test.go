package speech

import "testing"

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello world  ", "hello world"},
		{"line one\nline two\r\nthree", "line one line two three"},
		{"[BLANK_AUDIO]", ""},
		{"read this (keyboard clicking) please", "read this please"},
		{"[laughter] good morning", "good morning"},
		{"[00:00:00.000 --> 00:00:02.000]  Read me a story", "Read me a story"},
		{"Thank you.", ""},
		{"  you ", ""},
		{"thank you for the music", "thank you for the music"},
		{"(silence) [Music]", ""},
	}
	for _, tt := range tests {
		if got := cleanTranscription(tt.in); got != tt.want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
