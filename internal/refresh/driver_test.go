package refresh

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDriverFiresOnSchedule(t *testing.T) {
	var fires atomic.Int32
	d := NewDriver("* * * * * *", func() {
		fires.Add(1)
	})
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("driver did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestDriverEmptyScheduleDisabled(t *testing.T) {
	var fires atomic.Int32
	d := NewDriver("", func() {
		fires.Add(1)
	})
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	time.Sleep(1200 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Errorf("empty schedule should never fire, got %d", n)
	}
}

func TestDriverRejectsBadSchedule(t *testing.T) {
	d := NewDriver("not a schedule", func() {})
	if err := d.Start(); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}
	d.Stop()
}

func TestDriverReload(t *testing.T) {
	var fires atomic.Int32
	d := NewDriver("0 0 1 1 *", func() {
		fires.Add(1)
	})
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	if err := d.Reload("* * * * * *"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("reloaded schedule did not fire within 2.5s")
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}
