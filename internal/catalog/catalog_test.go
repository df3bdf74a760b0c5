package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hammamikhairi/readaloud/internal/domain"
	"github.com/hammamikhairi/readaloud/internal/logger"
	"github.com/hammamikhairi/readaloud/internal/speech/speechtest"
)

var (
	v1 = domain.Voice{Name: "V1", Locale: "en-US"}
	v2 = domain.Voice{Name: "V2", Locale: "fr-FR"}
)

func quietLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func names(vs []domain.Voice) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

func TestLoadResolvesImmediately(t *testing.T) {
	eng := speechtest.New(v2, v1)
	c := New(eng, quietLog())

	select {
	case voices, ok := <-c.Load():
		if !ok {
			t.Fatal("channel closed without a value")
		}
		// Host order is kept, no sorting.
		if got := names(voices); len(got) != 2 || got[0] != "V2" || got[1] != "V1" {
			t.Fatalf("got %v, want [V2 V1]", got)
		}
	default:
		t.Fatal("expected synchronous resolution")
	}

	if eng.ListenerCount() != 0 {
		t.Fatalf("no subscription expected, got %d", eng.ListenerCount())
	}
	if got := names(c.Voices()); len(got) != 2 {
		t.Fatalf("catalog not stored: %v", got)
	}
}

func TestLoadWaitsForReadiness(t *testing.T) {
	eng := speechtest.New()
	c := New(eng, quietLog())

	ch := c.Load()
	select {
	case <-ch:
		t.Fatal("resolved before readiness")
	default:
	}
	if eng.ListenerCount() != 1 {
		t.Fatalf("expected one readiness listener, got %d", eng.ListenerCount())
	}
	if len(c.Voices()) != 0 {
		t.Fatal("catalog should be empty before readiness")
	}

	eng.AnnounceVoices(v1)

	select {
	case voices := <-ch:
		if got := names(voices); len(got) != 1 || got[0] != "V1" {
			t.Fatalf("got %v, want [V1]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("load did not resolve after readiness")
	}
	if eng.ListenerCount() != 0 {
		t.Fatalf("listener should be removed after first signal, got %d", eng.ListenerCount())
	}

	// A later signal must not reach the catalog.
	eng.AnnounceVoices(v1, v2)
	if got := names(c.Voices()); len(got) != 1 {
		t.Fatalf("catalog changed after one-shot load: %v", got)
	}
}

func TestLoadErrorLeavesCatalogEmpty(t *testing.T) {
	eng := speechtest.New(v1)
	eng.SetVoicesError(errors.New("engine unreachable"))
	c := New(eng, quietLog())

	voices, ok := <-c.Load()
	if ok || voices != nil {
		t.Fatalf("expected closed channel, got %v, %v", voices, ok)
	}
	if len(c.Voices()) != 0 {
		t.Fatal("catalog should stay empty on error")
	}
}

func TestRepeatedLoadDoesNotAccumulateListeners(t *testing.T) {
	eng := speechtest.New()
	c := New(eng, quietLog())

	for i := 0; i < 10; i++ {
		c.Load()
	}
	if n := eng.ListenerCount(); n != 1 {
		t.Fatalf("expected one live listener, got %d", n)
	}

	c.Close()
	if n := eng.ListenerCount(); n != 0 {
		t.Fatalf("expected no listeners after Close, got %d", n)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	eng := speechtest.New()
	c := New(eng, quietLog())
	c.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWaitAfterReadiness(t *testing.T) {
	eng := speechtest.New()
	c := New(eng, quietLog())
	c.Load()

	go eng.AnnounceVoices(v1, v2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	voices, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %v", names(voices))
	}
}
