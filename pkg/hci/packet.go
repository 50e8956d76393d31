package hci

import (
	"encoding/binary"
	"fmt"
)

// CommandPacket is a command bound for the controller. Parameters are
// serialized in order, each in its minimal byte width.
type CommandPacket struct {
	OGF    OGF
	OCF    OCF
	Params []int64
}

func NewCommand(ogf OGF, ocf OCF, params ...int64) *CommandPacket {
	return &CommandPacket{OGF: ogf, OCF: ocf, Params: params}
}

func (p *CommandPacket) Opcode() Opcode {
	return NewOpcode(p.OGF, p.OCF)
}

// Bytes serializes the command as [tag][opcode lo][opcode hi][len][params].
// The opcode is always little-endian on the wire; order selects the byte
// order of the parameters themselves.
func (p *CommandPacket) Bytes(order binary.ByteOrder) ([]byte, error) {
	if order == nil {
		order = binary.LittleEndian
	}
	params := make([]byte, 0, 8)
	var err error
	for _, v := range p.Params {
		if params, err = appendParam(params, v, order); err != nil {
			return nil, err
		}
	}
	if len(params) > 0xFF {
		return nil, fmt.Errorf("%w: parameter block is %d bytes, length field holds at most 255", ErrEncoding, len(params))
	}
	opcode := p.Opcode()
	buf := make([]byte, 0, 4+len(params))
	buf = append(buf, byte(PacketTypeCommand), byte(opcode), byte(opcode>>8), byte(len(params)))
	return append(buf, params...), nil
}

// EventPacket is a decoded event frame. Params holds everything after
// the length byte (after the subcode byte for LE meta events); its
// interpretation depends on Code.
type EventPacket struct {
	Code      EventCode
	Length    uint8
	Status    StatusCode
	HasStatus bool
	Subcode   EventSubcode
	Params    []byte
}

type eventDecoder func(data []byte) (*EventPacket, error)

// Known event layouts. Codes outside this table decode through the
// generic layout so new firmware events never hard-fail.
var eventDecoders = map[EventCode]eventDecoder{
	EventCodeCommandComplete:           decodeCommandComplete,
	EventCodeHardwareError:             decodeHardwareError,
	EventCodeNumCompletedPackets:       decodeNumCompletedPackets,
	EventCodeDataBufferOverflow:        decodeNoStatus,
	EventCodeLEMeta:                    decodeLEMeta,
	EventCodeAuthPayloadTimeoutExpired: decodeNoStatus,
}

// DecodeEvent decodes an event frame. data starts at the event code;
// the frame type tag has already been consumed.
func DecodeEvent(data []byte) (*EventPacket, error) {
	if len(data) < 2 {
		return nil, errShortFrame
	}
	if decode, ok := eventDecoders[EventCode(data[0])]; ok {
		return decode(data)
	}
	return decodeGeneric(data)
}

func decodeCommandComplete(data []byte) (*EventPacket, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: command complete needs 6 bytes, have %d", errShortFrame, len(data))
	}
	return &EventPacket{
		Code:      EventCode(data[0]),
		Length:    data[1],
		Status:    StatusCode(data[5]),
		HasStatus: true,
		Params:    data[2:],
	}, nil
}

func decodeHardwareError(data []byte) (*EventPacket, error) {
	return &EventPacket{
		Code:      EventCode(data[0]),
		Length:    data[1],
		Status:    StatusHardwareFailure,
		HasStatus: true,
		Params:    data[2:],
	}, nil
}

func decodeNumCompletedPackets(data []byte) (*EventPacket, error) {
	return &EventPacket{
		Code:      EventCode(data[0]),
		Length:    data[1],
		Status:    StatusSuccess,
		HasStatus: true,
		Params:    data[2:],
	}, nil
}

func decodeNoStatus(data []byte) (*EventPacket, error) {
	return &EventPacket{
		Code:   EventCode(data[0]),
		Length: data[1],
		Params: data[2:],
	}, nil
}

func decodeLEMeta(data []byte) (*EventPacket, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: LE meta event needs a subcode byte", errShortFrame)
	}
	return &EventPacket{
		Code:    EventCode(data[0]),
		Length:  data[1],
		Subcode: EventSubcode(data[2]),
		Params:  data[3:],
	}, nil
}

func decodeGeneric(data []byte) (*EventPacket, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: event %#02x has no status byte", errShortFrame, data[0])
	}
	return &EventPacket{
		Code:      EventCode(data[0]),
		Length:    data[1],
		Status:    StatusCode(data[2]),
		HasStatus: true,
		Params:    data[3:],
	}, nil
}

// CommandOpcode returns the opcode echoed in a command-complete event.
func (p *EventPacket) CommandOpcode() (Opcode, bool) {
	if p.Code != EventCodeCommandComplete || len(p.Params) < 3 {
		return 0, false
	}
	return Opcode(binary.LittleEndian.Uint16(p.Params[1:3])), true
}

// ReturnLayout selects how return values are lifted out of an event.
type ReturnLayout struct {
	// Order is the byte order of the return values. Nil means little
	// endian.
	Order binary.ByteOrder

	// Raw includes the command-complete header (num-packets, opcode
	// echo, status) in the return-value region.
	Raw bool
}

func (l ReturnLayout) order() binary.ByteOrder {
	if l.Order == nil {
		return binary.LittleEndian
	}
	return l.Order
}

func (p *EventPacket) returnRegion(raw bool) []byte {
	if raw || len(p.Params) < 4 {
		return p.Params
	}
	return p.Params[4:]
}

// ReturnValue interprets the whole return-value region as one unsigned
// integer.
func (p *EventPacket) ReturnValue(l ReturnLayout) (uint64, error) {
	region := p.returnRegion(l.Raw)
	if len(region) > 8 {
		return 0, fmt.Errorf("%w: %d-byte region exceeds 64 bits", ErrLengthMismatch, len(region))
	}
	return decodeUint(region, l.order()), nil
}

// ReturnValueSigned is ReturnValue with a two's-complement
// interpretation of the region.
func (p *EventPacket) ReturnValueSigned(l ReturnLayout) (int64, error) {
	u, err := p.ReturnValue(l)
	if err != nil {
		return 0, err
	}
	return signExtend(u, len(p.returnRegion(l.Raw))), nil
}

// ReturnParams slices sequential return values of the given byte widths
// out of the return-value region.
func (p *EventPacket) ReturnParams(widths []int, l ReturnLayout) ([]uint64, error) {
	region := p.returnRegion(l.Raw)
	total := 0
	for _, w := range widths {
		total += w
	}
	if total > len(region) {
		return nil, fmt.Errorf("%w: expected %d bytes, have %d", ErrLengthMismatch, total, len(region))
	}
	values := make([]uint64, 0, len(widths))
	for _, w := range widths {
		values = append(values, decodeUint(region[:w], l.order()))
		region = region[w:]
	}
	return values, nil
}

// AsyncPacket is an ACL data frame delivered outside the
// command/completion cycle.
type AsyncPacket struct {
	Handle uint16 // 12-bit connection handle
	PBFlag uint8
	BCFlag uint8
	Length uint16
	Data   []byte
}

// DecodeAsync decodes an async frame. data starts at the handle/flags
// byte; the frame type tag has already been consumed.
func DecodeAsync(data []byte) (*AsyncPacket, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: async header needs 4 bytes, have %d", errShortFrame, len(data))
	}
	return &AsyncPacket{
		Handle: uint16(data[0]>>4) | uint16(data[1])<<4,
		PBFlag: data[0] >> 2 & 0x3,
		BCFlag: data[0] & 0x3,
		Length: binary.LittleEndian.Uint16(data[2:4]),
		Data:   data[4:],
	}, nil
}

// Bytes serializes the async frame without the leading type tag,
// matching the DecodeAsync input.
func (p *AsyncPacket) Bytes() []byte {
	buf := make([]byte, 4, 4+len(p.Data))
	buf[0] = byte(p.Handle&0xF)<<4 | p.PBFlag&0x3<<2 | p.BCFlag&0x3
	buf[1] = byte(p.Handle >> 4)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(p.Data)))
	return append(buf, p.Data...)
}

// ExtendedPacket is an extended command frame with a 16-bit length.
type ExtendedPacket struct {
	Opcode  Opcode
	Length  uint16
	Payload []byte
}

func DecodeExtended(data []byte) (*ExtendedPacket, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: extended header needs 4 bytes, have %d", errShortFrame, len(data))
	}
	return &ExtendedPacket{
		Opcode:  Opcode(binary.LittleEndian.Uint16(data[0:2])),
		Length:  binary.LittleEndian.Uint16(data[2:4]),
		Payload: data[4:],
	}, nil
}
