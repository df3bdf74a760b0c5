package speech

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

func TestCacheMemory(t *testing.T) {
	c := NewAudioCache("azure", "", false, quietLog())
	k := Key{Voice: "en-US-AvaNeural", Rate: 1, Pitch: 1, Volume: 0.5, Text: "hello"}

	if _, ok := c.Get(k); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Put(k, []byte("wav"))

	got, ok := c.Get(k)
	if !ok || string(got) != "wav" {
		t.Fatalf("got (%q, %v), want (wav, true)", got, ok)
	}
	if !c.Has(k) || c.Len() != 1 {
		t.Fatalf("Has=%v Len=%d", c.Has(k), c.Len())
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("stats = %d/%d, want 1/1", hits, misses)
	}

	c.Clear()
	if c.Len() != 0 || c.Has(k) {
		t.Fatal("Clear left entries behind")
	}
}

func TestCacheKeyIncludesProsody(t *testing.T) {
	c := NewAudioCache("azure", "", false, quietLog())
	base := Key{Voice: "V", Rate: 1, Pitch: 1, Volume: 0.5, Text: "hello"}
	c.Put(base, []byte("wav"))

	variants := map[string]Key{
		"rate":   {Voice: "V", Rate: 1.5, Pitch: 1, Volume: 0.5, Text: "hello"},
		"pitch":  {Voice: "V", Rate: 1, Pitch: 1.2, Volume: 0.5, Text: "hello"},
		"volume": {Voice: "V", Rate: 1, Pitch: 1, Volume: 0.9, Text: "hello"},
		"voice":  {Voice: "W", Rate: 1, Pitch: 1, Volume: 0.5, Text: "hello"},
	}
	for name, k := range variants {
		if c.Has(k) {
			t.Errorf("%s change should miss", name)
		}
	}

	// Float noise below the slider step still hits.
	noisy := base
	noisy.Rate = 1.0000001
	if !c.Has(noisy) {
		t.Error("rounding should absorb float noise")
	}
}

func TestCacheDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	k := Key{Voice: "V", Rate: 1, Pitch: 1, Volume: 0.5, Text: "persist me"}

	writer := NewAudioCache("piper", dir, true, quietLog())
	writer.Put(k, []byte("wav-bytes"))

	files, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one cache file, got %v (%v)", files, err)
	}

	// A fresh cache reads it back and promotes it to memory.
	reader := NewAudioCache("piper", dir, false, quietLog())
	got, ok := reader.Get(k)
	if !ok || string(got) != "wav-bytes" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
	if reader.Len() != 1 {
		t.Fatal("disk hit not promoted to memory")
	}

	// Another backend does not share entries.
	other := NewAudioCache("azure", dir, false, quietLog())
	if other.Has(k) {
		t.Fatal("backend name should be part of the hash")
	}
}

func TestCacheReadOnlyDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewAudioCache("piper", dir, false, quietLog())
	c.Put(Key{Text: "mem only"}, []byte("wav"))

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("read-only cache created %s (err=%v)", dir, err)
	}
}

func TestKeyForDefaultsVoice(t *testing.T) {
	k := KeyFor(domain.Utterance{Text: "x", Rate: 1, Pitch: 1, Volume: 0.5})
	if k.Voice != DefaultVoice {
		t.Fatalf("voice = %q, want %q", k.Voice, DefaultVoice)
	}

	v := domain.Voice{Name: "Jenny", Handle: "en-US-JennyNeural"}
	k = KeyFor(domain.Utterance{Text: "x", Voice: &v})
	if k.Voice != "en-US-JennyNeural" {
		t.Fatalf("voice = %q, want handle", k.Voice)
	}
}
