package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/spacecraft-simulator/model"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestNewTimeControllerValidates(t *testing.T) {
	if _, err := NewTimeController(start, 0, Accelerated, Intervals{1, 1, 1}); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("zero tick: expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := NewTimeController(start, time.Second, Accelerated, Intervals{1, 0, 1}); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Fatalf("zero orbit interval: expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestStepRaisesFlagsOnIntervals(t *testing.T) {
	tc, err := NewTimeController(start, 100*time.Millisecond, Accelerated, Intervals{Attitude: 1, Orbit: 2, Log: 5})
	if err != nil {
		t.Fatalf("NewTimeController: %v", err)
	}

	var orbitTicks, logTicks []int64
	for i := 0; i < 10; i++ {
		_, flags := tc.Step()
		if !flags.AttitudeDue {
			t.Fatalf("tick %d: attitude should be due every tick", tc.Count())
		}
		if flags.OrbitDue {
			orbitTicks = append(orbitTicks, tc.Count())
		}
		if flags.LogDue {
			logTicks = append(logTicks, tc.Count())
		}
	}
	if len(orbitTicks) != 5 || orbitTicks[0] != 2 {
		t.Fatalf("orbit ticks = %v", orbitTicks)
	}
	if len(logTicks) != 2 || logTicks[1] != 10 {
		t.Fatalf("log ticks = %v", logTicks)
	}
	if got, want := tc.Now(), start.Add(time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if tc.OrbitStep() != 0.2 {
		t.Fatalf("OrbitStep = %v, want 0.2", tc.OrbitStep())
	}
}

func TestRunAcceleratedStopsAfterSteps(t *testing.T) {
	tc, _ := NewTimeController(start, 5*time.Millisecond, Accelerated, Intervals{1, 1, 1})
	var seen int
	tc.AddListener(func(time.Time, Flags) { seen++ })

	done := tc.Start(context.Background(), 3, nil)
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := tc.Now(), start.Add(15*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if seen != 3 {
		t.Fatalf("listener saw %d ticks, want 3", seen)
	}
}

func TestRunStopsOnCallbackError(t *testing.T) {
	tc, _ := NewTimeController(start, time.Millisecond, Accelerated, Intervals{1, 1, 1})
	boom := errors.New("boom")
	err := tc.Run(context.Background(), 100, func(_ time.Time, _ Flags) error {
		if tc.Count() == 4 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tc.Count() != 4 {
		t.Fatalf("Count = %d, want 4", tc.Count())
	}
}

func TestRunRealTimeHonoursContext(t *testing.T) {
	tc, _ := NewTimeController(start, time.Hour, RealTime, Intervals{1, 1, 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tc.Run(ctx, 0, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tc.Count() != 0 {
		t.Fatalf("Count = %d, want 0", tc.Count())
	}
}
