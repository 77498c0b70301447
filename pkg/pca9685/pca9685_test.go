package pca9685

import (
	"bytes"
	"testing"
)

type fakePort struct {
	writes [][]byte
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	f.writes = append(f.writes, append([]byte{reg}, buf...))
	return nil
}

func (f *fakePort) Close() error {
	return nil
}

func TestPreScale(t *testing.T) {
	expectPreScale(t, 50, 121)
	expectPreScale(t, 1000, 5)
	expectPreScale(t, 1526, 3)
	expectPreScale(t, 100000, 3)
	expectPreScale(t, 1, 255)
}

func expectPreScale(t *testing.T, hz float64, expected byte) {
	if v := PreScale(hz); v != expected {
		t.Errorf("PreScale(%v) = %d, expected %d", hz, v, expected)
	}
}

func TestSetPWM(t *testing.T) {
	f := &fakePort{}
	p := &PCA9685{dev: f}

	if err := p.SetPWM(2, 0.5); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPWM(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPWM(15, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPWM(16, 1); err == nil {
		t.Fatal("Expected out-of-range channel to fail")
	}

	expected := [][]byte{
		{0x0e, 0, 0, 0xff, 0x07},
		{0x06, 0, 0, 0, 0x10},
		{0x42, 0, 0x10, 0, 0},
	}
	if len(f.writes) != len(expected) {
		t.Fatalf("Expected %d writes, got %d", len(expected), len(f.writes))
	}
	for i := range expected {
		if !bytes.Equal(f.writes[i], expected[i]) {
			t.Errorf("Write %d = %x, expected %x", i, f.writes[i], expected[i])
		}
	}
}

func TestParseChannel(t *testing.T) {
	for name, expected := range map[string]int{"0": 0, "ch3": 3, "LED15": 15, " 7 ": 7} {
		ch, err := ParseChannel(name)
		if err != nil || ch != expected {
			t.Errorf("ParseChannel(%q) = %d, %v", name, ch, err)
		}
	}
	for _, bad := range []string{"", "16", "P9_14", "-1"} {
		if _, err := ParseChannel(bad); err == nil {
			t.Errorf("Expected ParseChannel(%q) to fail", bad)
		}
	}
}
