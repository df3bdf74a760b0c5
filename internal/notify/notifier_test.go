package notify

import (
	"context"
	"testing"

	"github.com/hammamikhairi/readaloud/internal/logger"
)

func TestToasterForwardsKinds(t *testing.T) {
	type toast struct {
		kind Kind
		msg  string
	}
	var got []toast
	n := NewToaster(logger.New(logger.LevelOff, nil), func(k Kind, m string) {
		got = append(got, toast{k, m})
	})

	ctx := context.Background()
	if err := n.Notify(ctx, "voices loaded"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := n.NotifyUrgent(ctx, "Please enter text to speak"); err != nil {
		t.Fatalf("notify urgent: %v", err)
	}

	want := []toast{{KindInfo, "voices loaded"}, {KindUrgent, "Please enter text to speak"}}
	if len(got) != len(want) {
		t.Fatalf("got %d toasts, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("toast %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
