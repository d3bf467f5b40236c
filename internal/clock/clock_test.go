package clock_test

import (
	"testing"
	"time"

	"github.com/jensholdgaard/discord-giveaway-bot/internal/clock"
)

func TestReal_Now(t *testing.T) {
	clk := clock.Real{}
	before := time.Now()
	got := clk.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestReal_After(t *testing.T) {
	clk := clock.Real{}
	select {
	case <-clk.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("Real.After(1ms) did not fire within 1s")
	}
}

func TestMock_Now(t *testing.T) {
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Mock{T: fixed}

	got := clk.Now()
	if !got.Equal(fixed) {
		t.Errorf("Mock.Now() = %v, want %v", got, fixed)
	}

	// Call again to ensure determinism.
	got2 := clk.Now()
	if !got2.Equal(fixed) {
		t.Errorf("Mock.Now() second call = %v, want %v", got2, fixed)
	}
}

func TestMock_After(t *testing.T) {
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Mock{T: fixed}

	select {
	case got := <-clk.After(5 * time.Second):
		if want := fixed.Add(5 * time.Second); !got.Equal(want) {
			t.Errorf("Mock.After() sent %v, want %v", got, want)
		}
	default:
		t.Fatal("Mock.After() channel was not ready")
	}
}
