package dtm

import (
	"errors"
	"fmt"

	"github.com/dtmtools/blehci/pkg/hci"
)

// ErrCommandFailed reports a completion event with a non-success
// status.
var ErrCommandFailed = errors.New("dtm: command failed")

// Conn is the transport surface the catalog needs. *hci.Transport
// satisfies it.
type Conn interface {
	SendCommand(cmd *hci.CommandPacket, opts ...hci.SendOption) (*hci.EventPacket, error)
}

// Client issues test-firmware commands over an open transport.
type Client struct {
	conn Conn
}

func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

// cmd sends one command and rejects non-success completions.
func (c *Client) cmd(ogf hci.OGF, ocf hci.OCF, params ...int64) (*hci.EventPacket, error) {
	evt, err := c.conn.SendCommand(hci.NewCommand(ogf, ocf, params...))
	if err != nil {
		return nil, err
	}
	if evt.HasStatus && evt.Status != hci.StatusSuccess {
		return nil, fmt.Errorf("%w: opcode %#04x: %s",
			ErrCommandFailed, uint16(hci.NewOpcode(ogf, ocf)), evt.Status)
	}
	return evt, nil
}

// leBytes splits a fixed-width field into single-byte parameters so
// the codec's minimal-width encoding cannot shrink it on the wire.
func leBytes(v uint64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(v >> (8 * i) & 0xFF)
	}
	return out
}

// Reset resets the controller, clearing any running test.
func (c *Client) Reset() error {
	_, err := c.cmd(hci.OGFController, hci.OCFReset)
	return err
}

// SetAddress sets the device address used for advertising and
// connections.
func (c *Client) SetAddress(addr BDAddr) error {
	params := make([]int64, len(addr))
	for i, b := range addr {
		params[i] = int64(b)
	}
	_, err := c.cmd(hci.OGFVendorSpec, hci.OCFSetBDAddr, params...)
	return err
}

// SetDefaultPHY constrains both directions to the given PHY.
func (c *Client) SetDefaultPHY(phy PHY) error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetDefaultPHY, 0x00, phy.mask(), phy.mask())
	return err
}

// TxTest starts a transmitter test: fixed-length packets of the given
// payload pattern on one channel. EndTest stops it.
func (c *Client) TxTest(channel uint8, packetLen uint8, payload Payload, phy PHY) error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLETransmitterTestV2,
		int64(channel), int64(packetLen), int64(payload), int64(phy))
	return err
}

// RxTest starts a receiver test on one channel. EndTest stops it and
// reports the packet count.
func (c *Client) RxTest(channel uint8, phy PHY) error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLEReceiverTestV2,
		int64(channel), phy.rx(), 0x00)
	return err
}

// EndTest ends the running TX or RX test and returns the number of
// packets received (zero for a TX test).
func (c *Client) EndTest() (uint16, error) {
	evt, err := c.cmd(hci.OGFLEController, hci.OCFLETestEnd)
	if err != nil {
		return 0, err
	}
	n, err := evt.ReturnValue(hci.ReturnLayout{})
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// ReadRegister reads width bytes from a firmware register.
func (c *Client) ReadRegister(addr uint32, width uint8) (uint64, error) {
	params := append(leBytes(uint64(addr), 4), int64(width))
	evt, err := c.cmd(hci.OGFVendorSpec, hci.OCFRegisterRead, params...)
	if err != nil {
		return 0, err
	}
	return evt.ReturnValue(hci.ReturnLayout{})
}

// WriteRegister writes width bytes of value to a firmware register.
func (c *Client) WriteRegister(addr uint32, value uint64, width uint8) error {
	params := append(leBytes(uint64(addr), 4), int64(width))
	params = append(params, leBytes(value, int(width))...)
	_, err := c.cmd(hci.OGFVendorSpec, hci.OCFRegisterWrite, params...)
	return err
}

// SetChannelMap restricts data channels to the set bits of mask
// (channels 0-36).
func (c *Client) SetChannelMap(mask uint64) error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetChannelMap, leBytes(mask, 5)...)
	return err
}

// SetScanChannelMap restricts the advertising channels the scanner
// listens on.
func (c *Client) SetScanChannelMap(mask uint8) error {
	_, err := c.cmd(hci.OGFVendorSpec, hci.OCFSetScanChanMap, int64(mask))
	return err
}

// Stats reads the raw test counters.
func (c *Client) Stats() (Stats, error) {
	evt, err := c.cmd(hci.OGFVendorSpec, hci.OCFGetTestStats)
	if err != nil {
		return Stats{}, err
	}
	vals, err := evt.ReturnParams([]int{4, 4, 4, 4}, hci.ReturnLayout{})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		RxPackets:   uint32(vals[0]),
		RxCRCErrors: uint32(vals[1]),
		RxTimeouts:  uint32(vals[2]),
		TxPackets:   uint32(vals[3]),
	}, nil
}

// ResetStats zeroes the test counters.
func (c *Client) ResetStats() error {
	_, err := c.cmd(hci.OGFVendorSpec, hci.OCFResetTestStats)
	return err
}

// StartAdvertising begins advertising at the given interval, either
// connectable/scannable or non-connectable.
func (c *Client) StartAdvertising(interval uint16, connectable bool) error {
	advType := int64(0x03) // non-connectable undirected
	if connectable {
		advType = 0x00 // connectable, scannable, undirected
	}
	params := append(leBytes(uint64(interval), 2), leBytes(uint64(interval), 2)...)
	params = append(params, advType, 0x00, 0x00)
	params = append(params, leBytes(0, 6)...) // peer address unused
	params = append(params, 0x07, 0x00)       // all channels, no filter
	if _, err := c.cmd(hci.OGFLEController, hci.OCFLESetAdvertisingParams, params...); err != nil {
		return err
	}
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetAdvertisingEnable, 0x01)
	return err
}

func (c *Client) StopAdvertising() error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetAdvertisingEnable, 0x00)
	return err
}

// StartScanning begins active scanning with equal interval and window.
func (c *Client) StartScanning(interval uint16) error {
	params := []int64{0x01}
	params = append(params, leBytes(uint64(interval), 2)...)
	params = append(params, leBytes(uint64(interval), 2)...)
	params = append(params, 0x00, 0x00)
	if _, err := c.cmd(hci.OGFLEController, hci.OCFLESetScanParams, params...); err != nil {
		return err
	}
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetScanEnable, 0x01, 0x00)
	return err
}

func (c *Client) StopScanning() error {
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetScanEnable, 0x00, 0x00)
	return err
}
