// internal/led/led_test.go
package led

import (
	"errors"
	"testing"
)

type fakeSetter struct {
	got []Color
	err error
}

func (f *fakeSetter) SetColor(c Color) error {
	f.got = append(f.got, c)
	return f.err
}

func TestColorOf(t *testing.T) {
	cases := map[Event]Color{
		AppStarted:        {255, 102, 255},
		HTTPServerStarted: {204, 255, 51},
		WifiConnected:     {0, 255, 153},
	}
	for ev, want := range cases {
		if got := ColorOf(ev); got != want {
			t.Fatalf("%s: expected %v, got %v", ev, want, got)
		}
	}
}

func TestNotify_ForwardsColour(t *testing.T) {
	f := &fakeSetter{err: errors.New("bus error")}
	New(f).Notify(AppStarted)
	New(f).Notify(WifiConnected)

	if len(f.got) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(f.got))
	}
	if f.got[1] != ColorOf(WifiConnected) {
		t.Fatalf("unexpected colour %v", f.got[1])
	}
}

func TestNotify_NilBackend(t *testing.T) {
	New(nil).Notify(HTTPServerStarted)
}
