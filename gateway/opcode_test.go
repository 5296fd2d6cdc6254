package gateway

import (
	"testing"

	"github.com/corvidlabs/raven/errs"
)

// TestValidateDirectionKnownOpcodes tests that every opcode is accepted in
// its documented direction(s) and rejected in the other.
func TestValidateDirectionKnownOpcodes(t *testing.T) {
	if err := ValidateDirection(OpHello, DirRecv); err != nil {
		t.Fatalf("(Hello recv): got %v, wanted nil", err)
	}
	if err := ValidateDirection(OpHello, DirSend); err == nil {
		t.Fatalf("(Hello send): got nil, wanted an error")
	} else if err.(*errs.Error).Kind != errs.UnexpectedPacket {
		t.Fatalf("(Hello send kind): got %v, wanted UnexpectedPacket", err.(*errs.Error).Kind)
	}
	if err := ValidateDirection(OpHeartbeat, DirSend); err != nil {
		t.Fatalf("(Heartbeat send): got %v, wanted nil", err)
	}
	if err := ValidateDirection(OpHeartbeat, DirRecv); err != nil {
		t.Fatalf("(Heartbeat recv): got %v, wanted nil", err)
	}
}

// TestValidateDirectionUnknownOpcode tests that an opcode outside the
// known table is rejected regardless of direction.
func TestValidateDirectionUnknownOpcode(t *testing.T) {
	err := ValidateDirection(Opcode(99), DirRecv)
	if err == nil {
		t.Fatalf("(unknown opcode): got nil, wanted an error")
	}
	if err.(*errs.Error).Kind != errs.UnknownOpcode {
		t.Fatalf("(unknown opcode kind): got %v, wanted UnknownOpcode", err.(*errs.Error).Kind)
	}
}
