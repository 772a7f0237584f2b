package vumeter

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Unix(1_700_000_000, 0)

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		gain    float64
		want    float64
	}{
		{"silence", make([]int16, 480), 4, 0},
		{"empty", nil, 4, 0},
		{"half scale square", []int16{16384, -16384, 16384, -16384}, 1, 0.5},
		{"gain scales", []int16{4096, -4096}, 4, 0.5},
		{"clamped", []int16{32767, -32768}, 10, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Level(tc.samples, tc.gain)
			if math.Abs(got-tc.want) > 1e-3 {
				t.Errorf("Level = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMeter_PeakHold(t *testing.T) {
	m := New()

	m.Sample(0.8, ms(0))
	r := m.Sample(0.2, ms(400))
	if r.Level != 0.2 || r.Peak != 0.8 {
		t.Errorf("peak should hold: %+v", r)
	}

	r = m.Sample(0.3, ms(1000))
	if r.Peak != 0.8 {
		t.Errorf("peak should still hold at exactly 1000ms: %+v", r)
	}

	r = m.Sample(0.3, ms(1001))
	if r.Peak != 0.3 {
		t.Errorf("peak should reset after the hold window: %+v", r)
	}
}

func TestMeter_NewPeakRestartsHold(t *testing.T) {
	m := New()
	m.Sample(0.5, ms(0))
	m.Sample(0.9, ms(800))

	r := m.Sample(0.1, ms(1500))
	if r.Peak != 0.9 {
		t.Errorf("hold should restart at the new peak: %+v", r)
	}
}

func TestMeter_ReadingDecaysWithoutSamples(t *testing.T) {
	tests := []struct {
		name      string
		at        int
		wantLevel float64
		wantPeak  float64
	}{
		{"fresh", 100, 0.2, 0.8},
		{"at hold", 1000, 0.2, 0.8},
		{"peak expired", 1001, 0.2, 0.2},
		{"level stale", 1501, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			m.Sample(0.8, ms(0))
			m.Sample(0.2, ms(500))

			r := m.Reading(ms(tc.at))
			if r.Level != tc.wantLevel || r.Peak != tc.wantPeak {
				t.Errorf("Reading(%dms) = %+v, want level %v peak %v", tc.at, r, tc.wantLevel, tc.wantPeak)
			}
		})
	}
}

func TestMeter_Reset(t *testing.T) {
	m := New()
	m.Sample(0.9, ms(0))
	m.Reset()

	if r := m.Reading(ms(1)); r.Level != 0 || r.Peak != 0 {
		t.Errorf("after Reset: %+v", r)
	}
	if r := m.Sample(0.1, ms(2)); r.Peak != 0.1 {
		t.Errorf("peak should restart after Reset: %+v", r)
	}
}

func TestDBFS(t *testing.T) {
	if DBFS(0) != SilenceDBFS {
		t.Error("silence should floor")
	}
	if math.Abs(DBFS(1)) > 1e-9 {
		t.Errorf("full scale should be 0 dBFS, got %v", DBFS(1))
	}
	if math.Abs(DBFS(0.5)+6.0206) > 1e-3 {
		t.Errorf("half scale = %v", DBFS(0.5))
	}
}
