package observability

import "testing"

func TestStageWindowSnapshot(t *testing.T) {
	w := newStageWindow(8)
	w.Observe(StageSynthesize, 500)
	w.Observe(StageSynthesize, 700)
	w.Observe(StageSynthesize, 900)
	w.ObserveIndicator("synth_retry_full_text")
	w.ObserveIndicator("synth_retry_full_text")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageSynthesize {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageSynthesize)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 4000 {
		t.Fatalf("TargetP95MS = %.2f, want 4000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want %d", snap.Indicators[0].Count, 2)
	}
}

func TestStageWindowWrapsAtCapacity(t *testing.T) {
	w := newStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe(StageComplete, float64(100+i))
	}

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4 after wrap", s.Samples)
	}
	if s.LastMS != 109 {
		t.Fatalf("LastMS = %.2f, want 109", s.LastMS)
	}
}
