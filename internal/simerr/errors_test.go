package simerr

import (
	"errors"
	"testing"
)

func TestNewUnknownDeviceIsClassified(t *testing.T) {
	err := NewUnknownDevice("turbine_1")

	if !Is(err, UnknownDevice) {
		t.Fatalf("expected UnknownDevice kind, got %v", err.Kind)
	}
	if err.Details["device"] != "turbine_1" {
		t.Fatalf("expected device detail to be set, got %v", err.Details)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewTransientIO("readMemory", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
	if !Is(err, TransientIO) {
		t.Fatalf("expected TransientIO kind")
	}
}

func TestAsExtractsSimError(t *testing.T) {
	var err error = NewInvalidArgument("speed", "must be > 0")

	se, ok := As(err)
	if !ok {
		t.Fatalf("expected As to succeed")
	}
	if se.Kind != InvalidArgument {
		t.Fatalf("expected InvalidArgument kind, got %v", se.Kind)
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), Internal) {
		t.Fatalf("expected Is to be false for a non-SimError")
	}
}
