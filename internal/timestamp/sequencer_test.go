package timestamp

import "testing"

func TestSequencerStrictlyIncreasing(t *testing.T) {
	inputs := []uint64{100, 100, 100, 105, 105, 106, 200}

	var seq Sequencer
	var prev uint64
	for i, ts := range inputs {
		got := seq.Next(ts)
		if i > 0 && got < prev+MinGap {
			t.Errorf("output %d: got %d after %d, want gap >= %d", i, got, prev, MinGap)
		}
		if got < ts {
			t.Errorf("output %d: got %d, below input %d", i, got, ts)
		}
		prev = got
	}
}

func TestSequencerKnownSequence(t *testing.T) {
	// Duplicated timestamps get pushed apart; later timestamps that already
	// clear the gap pass through unchanged.
	inputs := []uint64{100, 100, 105}
	want := []uint64{100, 102, 105}

	var seq Sequencer
	for i, ts := range inputs {
		if got := seq.Next(ts); got != want[i] {
			t.Errorf("Next(%d) = %d, want %d", ts, got, want[i])
		}
	}
}

func TestSequencerDenseRun(t *testing.T) {
	// A run of equal timestamps fans out by exactly MinGap each.
	var seq Sequencer
	first := seq.Next(50)
	for i := 1; i < 10; i++ {
		got := seq.Next(50)
		want := first + uint64(i)*MinGap
		if got != want {
			t.Fatalf("call %d: got %d, want %d", i, got, want)
		}
	}
}

func TestSequencerBackwardsInputClamps(t *testing.T) {
	var seq Sequencer
	seq.Next(1000)
	if got := seq.Next(10); got != 1000+MinGap {
		t.Errorf("backwards input: got %d, want %d", got, 1000+MinGap)
	}
}

func TestIdentity(t *testing.T) {
	for _, ts := range []uint64{0, 1, 100, 100, 99} {
		if got := Identity(ts); got != ts {
			t.Errorf("Identity(%d) = %d", ts, got)
		}
	}
}
