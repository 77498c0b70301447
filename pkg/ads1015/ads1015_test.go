package ads1015

import (
	"bytes"
	"testing"
)

type fakePort struct {
	writes     [][]byte
	conversion []byte
}

func (f *fakePort) ReadReg(reg byte, buf []byte) error {
	if reg == RegConversion {
		copy(buf, f.conversion)
	}
	return nil
}

func (f *fakePort) WriteReg(reg byte, buf []byte) error {
	f.writes = append(f.writes, append([]byte{reg}, buf...))
	return nil
}

func (f *fakePort) Close() error {
	return nil
}

func TestConfigValue(t *testing.T) {
	expectConfig(t, 0, 0xc383)
	expectConfig(t, 1, 0xd383)
	expectConfig(t, 3, 0xf383)
}

func expectConfig(t *testing.T, ch int, expected uint16) {
	if v := ConfigValue(ch); v != expected {
		t.Errorf("ConfigValue(%d) = %#x, expected %#x", ch, v, expected)
	}
}

func TestReadChannel(t *testing.T) {
	f := &fakePort{conversion: []byte{0x52, 0xd0}}
	a := &ADS1015{dev: f}

	v, err := a.Channel(2).Read()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x52d {
		t.Errorf("Expected %d, got %d", 0x52d, v)
	}
	if len(f.writes) != 1 || !bytes.Equal(f.writes[0], []byte{RegConfig, 0xe3, 0x83}) {
		t.Errorf("Unexpected config writes %x", f.writes)
	}

	f.conversion = []byte{0xff, 0xf0}
	v, err = a.ReadChannel(0)
	if err != nil || v != 0 {
		t.Errorf("Negative reading should clamp to 0, got %d, %v", v, err)
	}

	if _, err := a.ReadChannel(4); err == nil {
		t.Error("Expected out-of-range channel to fail")
	}
}

func TestParseChannel(t *testing.T) {
	for name, expected := range map[string]int{"A0": 0, "ain3": 3, "2": 2} {
		ch, err := ParseChannel(name)
		if err != nil || ch != expected {
			t.Errorf("ParseChannel(%q) = %d, %v", name, ch, err)
		}
	}
	if _, err := ParseChannel("P9_39"); err == nil {
		t.Error("Expected header pin name to be rejected")
	}
}
