package dtm

import (
	"errors"
	"math"
	"testing"

	"github.com/dtmtools/blehci/pkg/hci"
)

type fakeConn struct {
	sent      []*hci.CommandPacket
	responses []*hci.EventPacket
	err       error
}

func (f *fakeConn) SendCommand(cmd *hci.CommandPacket, opts ...hci.SendOption) (*hci.EventPacket, error) {
	f.sent = append(f.sent, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return completion(0x00), nil
	}
	evt := f.responses[0]
	f.responses = f.responses[1:]
	return evt, nil
}

// completion builds a command-complete event with the given status and
// return bytes.
func completion(status byte, rv ...byte) *hci.EventPacket {
	frame := append([]byte{0x0E, byte(4 + len(rv)), 0x01, 0x01, 0xFC, status}, rv...)
	evt, err := hci.DecodeEvent(frame)
	if err != nil {
		panic(err)
	}
	return evt
}

func lastSent(t *testing.T, conn *fakeConn) *hci.CommandPacket {
	t.Helper()
	if len(conn.sent) == 0 {
		t.Fatal("no command sent")
	}
	return conn.sent[len(conn.sent)-1]
}

func TestTxTestCommand(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.TxTest(5, 37, PayloadPRBS9, PHY2M); err != nil {
		t.Fatalf("tx test: %v", err)
	}
	cmd := lastSent(t, conn)
	if cmd.Opcode() != 0x2034 {
		t.Fatalf("opcode: got %#04x, want 0x2034", uint16(cmd.Opcode()))
	}
	want := []int64{5, 37, 0, 2}
	if len(cmd.Params) != len(want) {
		t.Fatalf("params: got %v", cmd.Params)
	}
	for i := range want {
		if cmd.Params[i] != want[i] {
			t.Fatalf("param %d: got %d, want %d", i, cmd.Params[i], want[i])
		}
	}
}

func TestRxTestCodedPHYCollapses(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.RxTest(11, PHYCodedS2); err != nil {
		t.Fatalf("rx test: %v", err)
	}
	cmd := lastSent(t, conn)
	if cmd.Opcode() != 0x2033 {
		t.Fatalf("opcode: got %#04x, want 0x2033", uint16(cmd.Opcode()))
	}
	// The receiver does not distinguish S8 from S2.
	if cmd.Params[1] != int64(PHYCodedS8) {
		t.Fatalf("rx phy: got %d, want %d", cmd.Params[1], PHYCodedS8)
	}
}

func TestEndTestReturnsPacketCount(t *testing.T) {
	conn := &fakeConn{responses: []*hci.EventPacket{completion(0x00, 0x34, 0x12)}}
	c := NewClient(conn)
	n, err := c.EndTest()
	if err != nil {
		t.Fatalf("end test: %v", err)
	}
	if n != 0x1234 {
		t.Fatalf("packet count: got %#x, want 0x1234", n)
	}
}

func TestCommandFailedStatus(t *testing.T) {
	conn := &fakeConn{responses: []*hci.EventPacket{completion(byte(hci.StatusCommandDisallowed))}}
	c := NewClient(conn)
	if err := c.Reset(); !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
}

func TestSetAddressSplitsBytes(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.SetAddress(BDAddr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}); err != nil {
		t.Fatalf("set address: %v", err)
	}
	cmd := lastSent(t, conn)
	if cmd.OGF != hci.OGFVendorSpec || cmd.OCF != hci.OCFSetBDAddr {
		t.Fatalf("opcode: got %#04x", uint16(cmd.Opcode()))
	}
	want := []int64{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	for i := range want {
		if cmd.Params[i] != want[i] {
			t.Fatalf("param %d: got %#x, want %#x", i, cmd.Params[i], want[i])
		}
	}
}

func TestWriteRegisterLayout(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.WriteRegister(0x20001000, 0xBEEF, 2); err != nil {
		t.Fatalf("write register: %v", err)
	}
	cmd := lastSent(t, conn)
	want := []int64{0x00, 0x10, 0x00, 0x20, 2, 0xEF, 0xBE}
	if len(cmd.Params) != len(want) {
		t.Fatalf("params: got %v", cmd.Params)
	}
	for i := range want {
		if cmd.Params[i] != want[i] {
			t.Fatalf("param %d: got %#x, want %#x", i, cmd.Params[i], want[i])
		}
	}
}

func TestReadRegisterValue(t *testing.T) {
	conn := &fakeConn{responses: []*hci.EventPacket{completion(0x00, 0x78, 0x56, 0x34, 0x12)}}
	c := NewClient(conn)
	v, err := c.ReadRegister(0x40006000, 4)
	if err != nil {
		t.Fatalf("read register: %v", err)
	}
	if v != 0x12345678 {
		t.Fatalf("value: got %#x, want 0x12345678", v)
	}
}

func TestStatsPER(t *testing.T) {
	rv := make([]byte, 0, 16)
	for _, v := range []uint32{100, 5, 5, 0} {
		rv = append(rv, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	conn := &fakeConn{responses: []*hci.EventPacket{completion(0x00, rv...)}}
	c := NewClient(conn)
	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RxPackets != 100 || stats.RxCRCErrors != 5 || stats.RxTimeouts != 5 {
		t.Fatalf("counters: %+v", stats)
	}
	want := 100.0 * 10 / 110
	if math.Abs(stats.PER()-want) > 1e-9 {
		t.Fatalf("PER: got %f, want %f", stats.PER(), want)
	}
	if (Stats{}).PER() != 0 {
		t.Fatal("PER of zero counters must be 0")
	}
}

func TestStartAdvertisingSendsParamsThenEnable(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.StartAdvertising(0x60, true); err != nil {
		t.Fatalf("start advertising: %v", err)
	}
	if len(conn.sent) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(conn.sent))
	}
	params := conn.sent[0]
	if params.OCF != hci.OCFLESetAdvertisingParams {
		t.Fatalf("first command: got %#04x", uint16(params.Opcode()))
	}
	// Interval fields stay two bytes wide even for small values.
	if params.Params[0] != 0x60 || params.Params[1] != 0x00 {
		t.Fatalf("interval bytes: got %v", params.Params[:4])
	}
	enable := conn.sent[1]
	if enable.OCF != hci.OCFLESetAdvertisingEnable || enable.Params[0] != 1 {
		t.Fatalf("enable command: %+v", enable)
	}
}

func TestSetAdvertisingDataPadsPayload(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn)
	if err := c.SetAdvertisingData(FlagLEGeneralDiscoverable|FlagBREDRNotSupported, CompleteLocalName("per-dut")); err != nil {
		t.Fatalf("set advertising data: %v", err)
	}
	cmd := lastSent(t, conn)
	if cmd.OCF != hci.OCFLESetAdvertisingData {
		t.Fatalf("opcode: got %#04x", uint16(cmd.Opcode()))
	}
	if len(cmd.Params) != 1+advPayloadMax {
		t.Fatalf("params: got %d, want %d", len(cmd.Params), 1+advPayloadMax)
	}
	// flags structure (3) + name structure (2 + 7)
	if cmd.Params[0] != 12 {
		t.Fatalf("significant length: got %d, want 12", cmd.Params[0])
	}
	if cmd.Params[1] != 0x02 || cmd.Params[2] != 0x01 || cmd.Params[3] != 0x06 {
		t.Fatalf("flags structure: got %v", cmd.Params[1:4])
	}
}

func TestSetAdvertisingDataTooLong(t *testing.T) {
	c := NewClient(&fakeConn{})
	if err := c.SetAdvertisingData(CompleteLocalName("this local name is far too long to advertise")); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}
