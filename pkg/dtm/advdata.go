package dtm

import (
	"fmt"

	"github.com/dtmtools/blehci/pkg/hci"
)

const advPayloadMax = 31

// AdvData is one structure of the advertising payload.
type AdvData interface {
	Marshal() ([]byte, error)
}

type Flags uint8

const (
	FlagLELimitedDiscoverable Flags = 1 << 0
	FlagLEGeneralDiscoverable Flags = 1 << 1
	FlagBREDRNotSupported     Flags = 1 << 2
)

func (f Flags) Marshal() ([]byte, error) {
	return []byte{0x02, 0x01, byte(f)}, nil
}

type CompleteLocalName string

func (l CompleteLocalName) Marshal() ([]byte, error) {
	return append([]byte{byte(len(l) + 1), 0x09}, []byte(l)...), nil
}

type ShortLocalName string

func (l ShortLocalName) Marshal() ([]byte, error) {
	return append([]byte{byte(len(l) + 1), 0x08}, []byte(l)...), nil
}

// SetAdvertisingData replaces the advertising payload. The encoded
// structures must fit the 31-byte advertising PDU.
func (c *Client) SetAdvertisingData(parts ...AdvData) error {
	var payload []byte
	for _, part := range parts {
		buf, err := part.Marshal()
		if err != nil {
			return err
		}
		payload = append(payload, buf...)
	}
	if len(payload) > advPayloadMax {
		return fmt.Errorf("dtm: advertising payload is %d bytes, limit %d", len(payload), advPayloadMax)
	}
	params := make([]int64, 0, 1+advPayloadMax)
	params = append(params, int64(len(payload)))
	for _, b := range payload {
		params = append(params, int64(b))
	}
	for i := len(payload); i < advPayloadMax; i++ {
		params = append(params, 0x00)
	}
	_, err := c.cmd(hci.OGFLEController, hci.OCFLESetAdvertisingData, params...)
	return err
}
