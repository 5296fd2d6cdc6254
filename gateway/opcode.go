package gateway

import "github.com/corvidlabs/raven/errs"

// Opcode enumerates the Discord gateway opcodes this client speaks.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpStatusUpdate        Opcode = 3
	OpVoiceStatusUpdate   Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

// Direction tags whether an opcode is sent by the client, received from
// the server, or both.
type Direction uint8

const (
	DirSend Direction = 1 << iota
	DirRecv
)

var opcodeDirections = map[Opcode]Direction{
	OpDispatch:            DirRecv,
	OpHeartbeat:           DirSend | DirRecv,
	OpIdentify:            DirSend,
	OpStatusUpdate:        DirSend,
	OpVoiceStatusUpdate:   DirSend,
	OpResume:              DirSend,
	OpReconnect:           DirRecv,
	OpRequestGuildMembers: DirSend,
	OpInvalidSession:      DirRecv,
	OpHello:               DirRecv,
	OpHeartbeatAck:        DirRecv,
}

// ValidateDirection checks that op is a recognised opcode arriving in a
// direction that opcode is allowed to carry. Unknown opcodes and
// recognised opcodes arriving in the wrong direction are both reported
// through errs.
func ValidateDirection(op Opcode, dir Direction) error {
	allowed, known := opcodeDirections[op]
	if !known {
		return errs.New(errs.UnknownOpcode, "unknown gateway opcode %d", op)
	}
	if allowed&dir == 0 {
		return errs.New(errs.UnexpectedPacket, "gateway opcode %d received in unexpected direction", op)
	}
	return nil
}
