package observability

import (
	"context"
	"testing"
	"time"
)

type recordingPlacerHooks struct {
	stages     []string
	iterations int
}

func (r *recordingPlacerHooks) OnStageStart(_ context.Context, stage string, _ int) {
	r.stages = append(r.stages, stage)
}
func (r *recordingPlacerHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (r *recordingPlacerHooks) OnIteration(context.Context, int, float64, float64) {
	r.iterations++
}

func TestSetPlacerHooks(t *testing.T) {
	t.Cleanup(Reset)

	rec := &recordingPlacerHooks{}
	SetPlacerHooks(rec)

	Placer().OnStageStart(context.Background(), "global", 10)
	Placer().OnIteration(context.Background(), 1, 0.5, 100)

	if len(rec.stages) != 1 || rec.stages[0] != "global" {
		t.Errorf("stages = %v, want [global]", rec.stages)
	}
	if rec.iterations != 1 {
		t.Errorf("iterations = %d, want 1", rec.iterations)
	}
}

func TestSetPlacerHooksNilIgnored(t *testing.T) {
	t.Cleanup(Reset)

	SetPlacerHooks(nil)
	if Placer() == nil {
		t.Fatal("Placer() should never return nil")
	}
}

func TestReset(t *testing.T) {
	SetPlacerHooks(&recordingPlacerHooks{})
	Reset()

	if _, ok := Placer().(NoopPlacerHooks); !ok {
		t.Error("Reset() should restore the no-op placer hooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Reset() should restore the no-op cache hooks")
	}
}
