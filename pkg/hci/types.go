package hci

// Packet framing and event constants for the BLE5 test-firmware serial
// interface. The values mirror the standard HCI constant set.

type PacketType uint8

const (
	PacketTypeCommand         PacketType = 0x01
	PacketTypeAsync           PacketType = 0x02
	PacketTypeSynchronousData PacketType = 0x03
	PacketTypeEvent           PacketType = 0x04
	PacketTypeExtendedCommand PacketType = 0x09
)

type EventCode uint8

const (
	EventCodeDisconnectionComplete     EventCode = 0x05
	EventCodeEncryptionChange          EventCode = 0x08
	EventCodeReadRemoteVersionComplete EventCode = 0x0C
	EventCodeCommandComplete           EventCode = 0x0E
	EventCodeCommandStatus             EventCode = 0x0F
	EventCodeHardwareError             EventCode = 0x10
	EventCodeNumCompletedPackets       EventCode = 0x13
	EventCodeDataBufferOverflow        EventCode = 0x1A
	EventCodeEncryptionKeyRefresh      EventCode = 0x30
	EventCodeLEMeta                    EventCode = 0x3E
	EventCodeAuthPayloadTimeoutExpired EventCode = 0x57
	EventCodeVendorSpec                EventCode = 0xFF
)

type EventSubcode uint8

const (
	EventSubcodeConnectionComplete         EventSubcode = 0x01
	EventSubcodeAdvertisingReport          EventSubcode = 0x02
	EventSubcodeConnectionUpdate           EventSubcode = 0x03
	EventSubcodeReadRemoteFeaturesComplete EventSubcode = 0x04
	EventSubcodeLongTermKeyRequest         EventSubcode = 0x05
	EventSubcodeGenerateDHKeyComplete      EventSubcode = 0x09
	EventSubcodeEnhancedConnComplete       EventSubcode = 0x0A
	EventSubcodePHYUpdateComplete          EventSubcode = 0x0C
	EventSubcodeExtAdvertisingReport       EventSubcode = 0x0D
)

// StatusCode is a controller status as carried in completion events.
type StatusCode uint8

const (
	StatusSuccess           StatusCode = 0x00
	StatusUnknownCommand    StatusCode = 0x01
	StatusUnknownConnID     StatusCode = 0x02
	StatusHardwareFailure   StatusCode = 0x03
	StatusCommandDisallowed StatusCode = 0x0C
	StatusUnsupported       StatusCode = 0x11
	StatusInvalidParams     StatusCode = 0x12
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnknownCommand:
		return "unknown command"
	case StatusUnknownConnID:
		return "unknown connection identifier"
	case StatusHardwareFailure:
		return "hardware failure"
	case StatusCommandDisallowed:
		return "command disallowed"
	case StatusUnsupported:
		return "unsupported feature or parameter"
	case StatusInvalidParams:
		return "invalid command parameters"
	}
	return "unknown status"
}
