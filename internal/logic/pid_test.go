package logic

import "testing"

func TestPIDColdStartSaturates(t *testing.T) {
	// spec.md scenario S1: setpoint 300,000 m°C, measured tip 25,000 m°C.
	p := NewPID()
	out := p.Process(25_000, 300_000)
	if out != HeatingPowerMaxMW {
		t.Fatalf("cold start: got %d mW, want clamp at %d", out, HeatingPowerMaxMW)
	}
}

func TestPIDZeroErrorIsNotNegative(t *testing.T) {
	p := NewPID()
	out := p.Process(300_000, 300_000)
	if out < 0 {
		t.Fatalf("zero error: got negative power %d", out)
	}
}

func TestPIDNeverExceedsBounds(t *testing.T) {
	p := NewPID()
	for i := 0; i < 50; i++ {
		out := p.Process(int64(i*1000), 300_000)
		if out < 0 || out > HeatingPowerMaxMW {
			t.Fatalf("iteration %d: power %d out of [0, %d]", i, out, HeatingPowerMaxMW)
		}
	}
}

func TestPIDResetClearsHistory(t *testing.T) {
	p := NewPID()
	p.Process(25_000, 300_000)
	p.Process(30_000, 300_000)
	if p.integral == 0 {
		t.Fatal("expected nonzero integral before reset")
	}

	p.Reset()
	if p.integral != 0 || p.prevError != 0 || p.hasPrev {
		t.Fatalf("reset did not clear state: %+v", p)
	}
}

func TestPIDOvershootDrivesOutputDown(t *testing.T) {
	p := NewPID()
	// Well above setpoint: error is negative, output should clamp at 0.
	out := p.Process(350_000, 300_000)
	if out != 0 {
		t.Fatalf("overshoot: got %d mW, want 0", out)
	}
}
