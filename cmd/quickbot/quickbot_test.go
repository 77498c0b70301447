package main

import "testing"

func TestOverrideAddr(t *testing.T) {
	for _, c := range []struct {
		addr, host string
		port       int
		expected   string
	}{
		{"192.168.7.1:5005", "", 0, "192.168.7.1:5005"},
		{"192.168.7.1:5005", "10.0.0.5", 0, "10.0.0.5:5005"},
		{"192.168.7.1:5005", "", 6000, "192.168.7.1:6000"},
		{"192.168.7.1:5005", "::1", 6000, "[::1]:6000"},
	} {
		actual, err := overrideAddr(c.addr, c.host, c.port)
		if err != nil {
			t.Fatal(err)
		}
		if actual != c.expected {
			t.Errorf("overrideAddr(%q, %q, %d) = %q, expected %q", c.addr, c.host, c.port, actual, c.expected)
		}
	}
	if _, err := overrideAddr("no port here", "1.2.3.4", 0); err == nil {
		t.Error("Expected a malformed address to be rejected")
	}
}
