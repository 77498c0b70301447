package hardware

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tigerbot-team/quickbot/pkg/pca9685"
)

func TestAINChannel(t *testing.T) {
	expectAIN(t, "P9_39", 0)
	expectAIN(t, "p9_37", 2)
	expectAIN(t, "P9_35", 6)
	expectAIN(t, "AIN4", 4)
	expectAIN(t, "ain0", 0)

	for _, bad := range []string{"P8_12", "AIN7", "AIN", ""} {
		if _, err := AINChannel(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func expectAIN(t *testing.T, name string, expected int) {
	ch, err := AINChannel(name)
	if err != nil {
		t.Errorf("AINChannel(%q) failed: %v", name, err)
		return
	}
	if ch != expected {
		t.Errorf("AINChannel(%q) = %d, expected %d", name, ch, expected)
	}
}

func TestSysfsAnalog(t *testing.T) {
	dir := t.TempDir()
	oldDir := IIODir
	IIODir = dir
	defer func() { IIODir = oldDir }()

	if _, err := OpenSysfsAnalog("P9_39"); err == nil {
		t.Fatal("Expected missing channel file to fail")
	}

	path := filepath.Join(dir, "in_voltage0_raw")
	if err := os.WriteFile(path, []byte("1325\n"), 0644); err != nil {
		t.Fatal(err)
	}
	in, err := OpenSysfsAnalog("P9_39")
	if err != nil {
		t.Fatal(err)
	}
	v, err := in.Read()
	if err != nil || v != 1325 {
		t.Fatalf("Read() = %d, %v", v, err)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := in.Read(); err == nil {
		t.Fatal("Expected unparseable reading to fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	cfg.PWMPins.Right = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected missing PWM pin to fail validation")
	}

	cfg = DefaultConfig()
	cfg.ADC = "magic"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected unknown ADC backend to fail validation")
	}

	cfg = DefaultConfig()
	cfg.Backend = BackendDummy
	cfg.EncoderPins.Left = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Dummy backend needs no pins: %v", err)
	}
}

func TestOpenDummy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendDummy
	hw, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hw.(*Dummy); !ok {
		t.Fatalf("Expected a dummy board, got %T", hw)
	}
	if len(hw.IR()) != 5 {
		t.Errorf("Expected 5 IR inputs, got %d", len(hw.IR()))
	}
}

func TestBoardCloseReleasesEverythingOnce(t *testing.T) {
	var order []int
	b := &Board{}
	b.onClose(func() error { order = append(order, 1); return nil })
	b.onClose(func() error { order = append(order, 2); return errors.New("boom") })
	b.onClose(func() error { order = append(order, 3); return nil })

	if err := b.Close(); err == nil || err.Error() != "boom" {
		t.Fatalf("Expected the release error, got %v", err)
	}
	if err := b.Close(); err == nil {
		t.Fatal("Second Close should report the same error")
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("Expected reverse release order once, got %v", order)
	}
}

func TestSimulatedEncoderIdleIsSteady(t *testing.T) {
	pwm := &DummyPWM{}
	enc := NewSimulatedEncoder(pwm)
	first, _ := enc.Read()
	for i := 0; i < 100; i++ {
		if v, _ := enc.Read(); v != first {
			t.Fatalf("Stationary wheel changed reading %d -> %d", first, v)
		}
	}
}

func TestDummyAnalogScript(t *testing.T) {
	a := &DummyAnalog{}
	a.Set(7)
	a.Script(DummyReading{Value: 1}, DummyReading{Err: ErrDummyRead})

	if v, err := a.Read(); v != 1 || err != nil {
		t.Errorf("First read = %d, %v", v, err)
	}
	if _, err := a.Read(); err != ErrDummyRead {
		t.Errorf("Second read should fail, got %v", err)
	}
	if v, err := a.Read(); v != 7 || err != nil {
		t.Errorf("Third read = %d, %v", v, err)
	}
	if a.Reads() != 3 {
		t.Errorf("Expected 3 reads, got %d", a.Reads())
	}
}

func TestPCAPWMScalesPercent(t *testing.T) {
	chip := pca9685.Dummy()
	pwm := &pcaPWM{chip: chip, channel: 3}

	if err := pwm.SetDuty(50); err != nil {
		t.Fatal(err)
	}
	if v := chip.Value(3); v != 0.5 {
		t.Fatalf("Channel 3 = %v, expected 0.5", v)
	}
	if v := chip.Value(2); v != 0 {
		t.Fatalf("Channel 2 should be untouched, got %v", v)
	}
	if err := pwm.SetDuty(100); err != nil {
		t.Fatal(err)
	}
	if v := chip.Value(3); v != 1 {
		t.Fatalf("Channel 3 = %v, expected 1", v)
	}
	if err := pwm.Halt(); err != nil {
		t.Fatal(err)
	}
	if v := chip.Value(3); v != 0 {
		t.Fatalf("Channel 3 = %v after Halt, expected 0", v)
	}
}
