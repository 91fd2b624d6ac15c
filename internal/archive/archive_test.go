package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/infrastructure/database"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
	"github.com/nerrad567/rigdash/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewStore(db.DB)
}

func TestWriteSamples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gauge := device.Device{ID: 3, Name: "strain 3", Kind: rig.KindSensor}
	valve := device.Device{ID: 3, Name: "valve", Kind: rig.KindActuator}

	if err := s.WriteSamples(ctx, gauge, []series.Sample{{T: 1, V: 10}, {T: 2, V: 20}, {T: 3, V: 30}}); err != nil {
		t.Fatalf("WriteSamples() error = %v", err)
	}
	if err := s.WriteSamples(ctx, valve, []series.Sample{{T: 1, V: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteSamples(ctx, gauge, nil); err != nil {
		t.Errorf("WriteSamples(nil) error = %v", err)
	}

	got, err := s.Samples(ctx, gauge.Ref(), 2)
	if err != nil {
		t.Fatalf("Samples() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Samples() returned %d rows, want 2", len(got))
	}
	if got[0].Sample != (series.Sample{T: 3, V: 30}) || got[1].Sample.T != 2 {
		t.Errorf("Samples() order = %+v, want newest first", got)
	}
	if got[0].Device != gauge.Ref() || got[0].Name != "strain 3" {
		t.Errorf("Samples()[0] = %+v", got[0])
	}

	// Same id, other kind, kept apart.
	got, err = s.Samples(ctx, valve.Ref(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sample.V != 1 {
		t.Errorf("actuator samples = %+v", got)
	}
}

func TestRecordTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, code := range []rig.ControlState{rig.StateStart, rig.StateStop} {
		v := control.ViewFor(rig.ControlStatus{StateID: code, ExperimentName: "burst", UserName: "alice"})
		if err := s.RecordTransition(ctx, v); err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	got, err := s.Transitions(ctx, 0)
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Transitions() = %d rows, want 2", len(got))
	}
	if got[0].State != control.StateStop || got[0].Code != rig.StateStop {
		t.Errorf("newest = %+v, want stop", got[0])
	}
	if got[1].Experiment != "burst" || got[1].User != "alice" || got[1].Text != "Experiment started - 'burst' by alice" {
		t.Errorf("oldest = %+v", got[1])
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	gauge := device.Device{ID: 1, Name: "g", Kind: rig.KindSensor}

	s.now = func() time.Time { return base.Add(-3 * time.Hour) }
	if err := s.WriteSamples(ctx, gauge, []series.Sample{{T: 1, V: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordTransition(ctx, control.ViewFor(rig.ControlStatus{StateID: rig.StateStop})); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base }
	if err := s.WriteSamples(ctx, gauge, []series.Sample{{T: 2, V: 2}}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d, want 2", n)
	}
	got, err := s.Samples(ctx, gauge.Ref(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sample.T != 2 {
		t.Errorf("remaining samples = %+v", got)
	}

	if _, err := s.Prune(ctx, 0); !errors.Is(err, ErrInvalidRetention) {
		t.Errorf("Prune(0) error = %v, want ErrInvalidRetention", err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{{0, 50}, {-1, 50}, {10, 10}, {200, 200}, {1000, 200}}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
