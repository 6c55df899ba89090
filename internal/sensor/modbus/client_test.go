// internal/sensor/modbus/client_test.go
package modbus

import "testing"

func TestUnpackRegisters(t *testing.T) {
	regs, err := unpackRegisters([]byte{0x00, 0xE7, 0xFF, 0x9C}, 2)
	if err != nil {
		t.Fatalf("unpackRegisters err=%v", err)
	}
	if regs[0] != 231 || regs[1] != 0xFF9C {
		t.Fatalf("unexpected registers %v", regs)
	}
}

func TestUnpackRegisters_Short(t *testing.T) {
	if _, err := unpackRegisters([]byte{0x00}, 1); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestNew_RequiresEndpoint(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
