package config

import (
	"math"
	"testing"

	"tinyg/core"
)

func TestStepsPerUnit(t *testing.T) {
	a := AxisConfig{StepAngle: 1.8, Microsteps: 16, TravelPerRev: 8}
	got := a.StepsPerUnit()
	want := 360.0 / 1.8 * 16 / 8
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("StepsPerUnit() = %v, want %v", got, want)
	}
}

func TestStepsPerUnitZeroGeometryIsZero(t *testing.T) {
	if got := (AxisConfig{}).StepsPerUnit(); got != 0 {
		t.Fatalf("StepsPerUnit() on zero-value axis = %v, want 0", got)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	c, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) error: %v", err)
	}
	if c.ArcSegmentMM == 0 {
		t.Fatalf("expected ArcSegmentMM to default, got 0")
	}
	if c.Axis[0].Mode != AxisModeLinear {
		t.Fatalf("expected axis 0 to default to linear, got %v", c.Axis[0].Mode)
	}
}

func TestLoadPartialJSONKeepsOverridesAndFillsRest(t *testing.T) {
	data := []byte(`{"arc_segment_mm": 0.05}`)
	c, err := Load(data)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.ArcSegmentMM != 0.05 {
		t.Fatalf("ArcSegmentMM = %v, want 0.05 (explicit override)", c.ArcSegmentMM)
	}
	if c.JunctionAcceleration == 0 {
		t.Fatalf("expected JunctionAcceleration to still be defaulted")
	}
}

type memStore struct {
	data []byte
}

func (m *memStore) WriteRecord(data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) ReadRecord() ([]byte, error) {
	if m.data == nil {
		return nil, core.NewStatusError(core.StatusInternalError, 0, "no record written")
	}
	return m.data, nil
}

func TestWriteThroughRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.Axis[0].VelocityMax = 123.5
	c.ArcSegmentMM = 0.2

	store := &memStore{}
	if err := c.WriteThrough(store); err != nil {
		t.Fatalf("WriteThrough: %v", err)
	}

	got, err := ReadFrom(store)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if got.Axis[0].VelocityMax != 123.5 {
		t.Fatalf("round-tripped VelocityMax = %v, want 123.5", got.Axis[0].VelocityMax)
	}
	if got.ArcSegmentMM != 0.2 {
		t.Fatalf("round-tripped ArcSegmentMM = %v, want 0.2", got.ArcSegmentMM)
	}
}

func TestReadFromFallsBackToDefaultsOnEmptyStore(t *testing.T) {
	store := &memStore{}
	c, err := ReadFrom(store)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if c.ArcSegmentMM != DefaultConfig().ArcSegmentMM {
		t.Fatalf("expected default ArcSegmentMM on empty store")
	}
}
