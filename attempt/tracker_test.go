package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestTracker(t *testing.T, max int, block time.Duration) *Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTracker(client, "va", max, block)
}

func TestBelowThresholdNotBlocked(t *testing.T) {
	tracker := newTestTracker(t, 5, time.Minute)
	ctx := context.Background()

	for i := 1; i < 5; i++ {
		st, err := tracker.RecordFailure(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if st.Blocked {
			t.Fatalf("blocked after %d failures", i)
		}
		if st.Count != i {
			t.Fatalf("count = %d, want %d", st.Count, i)
		}
	}

	st, _ := tracker.Check(ctx, "1.2.3.4")
	if st.Blocked {
		t.Fatal("Check reports blocked below threshold")
	}
}

func TestThresholdBlocks(t *testing.T) {
	tracker := newTestTracker(t, 5, time.Minute)
	ctx := context.Background()

	var last Status
	for i := 0; i < 5; i++ {
		last, _ = tracker.RecordFailure(ctx, "1.2.3.4")
	}
	if !last.Blocked || !last.JustBlocked {
		t.Fatalf("fifth failure: %+v, want blocked and just-blocked", last)
	}
	if last.RetryAfter <= 0 || last.RetryAfter > time.Minute {
		t.Fatalf("retry after = %s", last.RetryAfter)
	}

	st, _ := tracker.Check(ctx, "1.2.3.4")
	if !st.Blocked {
		t.Fatal("Check does not report the active block")
	}

	// Further failures while blocked are ignored, not re-counted.
	st, _ = tracker.RecordFailure(ctx, "1.2.3.4")
	if !st.Blocked || st.JustBlocked {
		t.Fatalf("failure during block: %+v", st)
	}
}

func TestElapsedBlockResets(t *testing.T) {
	tracker := newTestTracker(t, 2, 50*time.Millisecond)
	ctx := context.Background()

	tracker.RecordFailure(ctx, "1.2.3.4")
	st, _ := tracker.RecordFailure(ctx, "1.2.3.4")
	if !st.JustBlocked {
		t.Fatalf("not blocked at threshold: %+v", st)
	}

	time.Sleep(60 * time.Millisecond)

	// The failure that discovers the elapsed block clears the record and
	// is itself not counted.
	st, _ = tracker.RecordFailure(ctx, "1.2.3.4")
	if st.Blocked || st.Count != 0 {
		t.Fatalf("post-block failure: %+v, want clean state", st)
	}

	// The next failure starts a fresh count at 1.
	st, _ = tracker.RecordFailure(ctx, "1.2.3.4")
	if st.Count != 1 || st.Blocked {
		t.Fatalf("fresh count: %+v", st)
	}
}

func TestElapsedBlockClearedByCheck(t *testing.T) {
	tracker := newTestTracker(t, 1, 50*time.Millisecond)
	ctx := context.Background()

	st, _ := tracker.RecordFailure(ctx, "1.2.3.4")
	if !st.Blocked {
		t.Fatalf("single-attempt threshold did not block: %+v", st)
	}

	time.Sleep(60 * time.Millisecond)

	st, _ = tracker.Check(ctx, "1.2.3.4")
	if st.Blocked {
		t.Fatal("elapsed block still reported")
	}
}

func TestResetClearsCount(t *testing.T) {
	tracker := newTestTracker(t, 3, time.Minute)
	ctx := context.Background()

	tracker.RecordFailure(ctx, "1.2.3.4")
	tracker.RecordFailure(ctx, "1.2.3.4")
	if err := tracker.Reset(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	st, _ := tracker.RecordFailure(ctx, "1.2.3.4")
	if st.Count != 1 {
		t.Fatalf("count after reset = %d, want 1", st.Count)
	}
}

func TestAddressesAreIndependent(t *testing.T) {
	tracker := newTestTracker(t, 2, time.Minute)
	ctx := context.Background()

	tracker.RecordFailure(ctx, "1.2.3.4")
	tracker.RecordFailure(ctx, "1.2.3.4")

	st, _ := tracker.Check(ctx, "5.6.7.8")
	if st.Blocked {
		t.Fatal("unrelated address blocked")
	}
}
