// Package dtm is the semantic command catalog for the BLE5 test
// firmware: direct-test-mode TX/RX, PHY and payload selection, register
// access, advertising and scanning, and packet-error-rate statistics.
// It builds command frames and interprets completion events; all
// concurrency and framing lives in pkg/hci.
package dtm

// BDAddr is a Bluetooth device address, little-endian on the wire.
type BDAddr [6]byte

// PHY selects a radio physical-layer mode for test commands.
type PHY uint8

const (
	PHY1M      PHY = 0x01
	PHY2M      PHY = 0x02
	PHYCodedS8 PHY = 0x03
	PHYCodedS2 PHY = 0x04
)

// mask returns the PHY preference bitmask used by PHY-selection
// commands, where both coded rates share one bit.
func (p PHY) mask() int64 {
	switch p {
	case PHY1M:
		return 0x01
	case PHY2M:
		return 0x02
	default:
		return 0x04
	}
}

// rx maps the PHY to a receiver-test value, which does not distinguish
// the coded rates.
func (p PHY) rx() int64 {
	if p == PHYCodedS2 {
		return int64(PHYCodedS8)
	}
	return int64(p)
}

// Payload selects a test-packet payload pattern.
type Payload uint8

const (
	PayloadPRBS9    Payload = 0x00
	Payload11110000 Payload = 0x01
	Payload10101010 Payload = 0x02
	PayloadPRBS15   Payload = 0x03
	Payload11111111 Payload = 0x04
	Payload00000000 Payload = 0x05
	Payload00001111 Payload = 0x06
	Payload01010101 Payload = 0x07
)

// Stats holds the raw test counters reported by the firmware.
type Stats struct {
	RxPackets   uint32
	RxCRCErrors uint32
	RxTimeouts  uint32
	TxPackets   uint32
}

// PER derives the packet error rate in percent from the raw counters.
func (s Stats) PER() float64 {
	errors := float64(s.RxCRCErrors) + float64(s.RxTimeouts)
	total := float64(s.RxPackets) + errors
	if total == 0 {
		return 0
	}
	return 100 * errors / total
}
