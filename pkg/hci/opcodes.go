package hci

// Opcode is a 16-bit command identifier composed of a 6-bit opcode group
// field and a 10-bit opcode command field.
type Opcode uint16

// OGF is an opcode group field. Valid values fit in 6 bits.
type OGF uint8

const (
	OGFNop          OGF = 0x00
	OGFLinkControl  OGF = 0x01
	OGFLinkPolicy   OGF = 0x02
	OGFController   OGF = 0x03
	OGFInfoParams   OGF = 0x04
	OGFStatusParams OGF = 0x05
	OGFTesting      OGF = 0x06
	OGFLEController OGF = 0x08
	OGFVendorSpec   OGF = 0x3F
)

// OCF is an opcode command field. Valid values fit in 10 bits.
type OCF uint16

// Controller and baseband group.
const (
	OCFSetEventMask OCF = 0x0001
	OCFReset        OCF = 0x0003
)

// LE controller group.
const (
	OCFLESetEventMask         OCF = 0x0001
	OCFLESetAdvertisingParams OCF = 0x0006
	OCFLESetAdvertisingData   OCF = 0x0008
	OCFLESetAdvertisingEnable OCF = 0x000A
	OCFLESetScanParams        OCF = 0x000B
	OCFLESetScanEnable        OCF = 0x000C
	OCFLESetChannelMap        OCF = 0x0014
	OCFLETestEnd              OCF = 0x001F
	OCFLESetDefaultPHY        OCF = 0x0031
	OCFLEReceiverTestV2       OCF = 0x0033
	OCFLETransmitterTestV2    OCF = 0x0034
)

// Vendor-specific group, matching the test-firmware command set.
const (
	OCFRegisterWrite  OCF = 0x0300
	OCFRegisterRead   OCF = 0x0301
	OCFResetTestStats OCF = 0x03DC
	OCFGetTestStats   OCF = 0x03DD
	OCFSetScanChanMap OCF = 0x03E0
	OCFSetBDAddr      OCF = 0x03F0
)

// NewOpcode packs an opcode group field and an opcode command field
// into a single 16-bit opcode.
func NewOpcode(ogf OGF, ocf OCF) Opcode {
	return Opcode(uint16(ogf)<<10 | uint16(ocf)&0x3FF)
}

// OGF returns the opcode group field.
func (o Opcode) OGF() OGF {
	return OGF(o >> 10)
}

// OCF returns the opcode command field.
func (o Opcode) OCF() OCF {
	return OCF(o & 0x3FF)
}
