package hci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate matches the test firmware's UART configuration.
	DefaultBaudRate = 115200

	// DefaultTimeout bounds one wait for a completion event.
	DefaultTimeout = time.Second

	pollInterval     = 5 * time.Millisecond
	frameReadTimeout = time.Second
	completionDepth  = 32
)

var errNoData = errors.New("hci: no data pending")

// conn is the subset of the serial port the transport needs. *serial.Port
// satisfies it; tests substitute an in-memory pipe.
type conn interface {
	io.ReadWriteCloser
	Flush() error
}

// AsyncHandler consumes async data frames as they arrive. Frames are
// discarded when no handler is registered.
type AsyncHandler func(*AsyncPacket)

// EventHandler consumes unsolicited (non-completion) events. Events are
// discarded when no handler is registered.
type EventHandler func(*EventPacket)

// Transport owns one serial port and correlates written commands with
// the completion events read back by its background reader. Exactly two
// goroutines contend per transport: the caller and the reader.
type Transport struct {
	portID  string
	tag     string
	log     *zap.Logger
	timeout time.Duration
	retries int

	asyncHandler AsyncHandler
	eventHandler EventHandler

	// portMu serializes port access between SendCommand's write and the
	// reader. The reader only ever tries the lock, so a writer is never
	// starved.
	portMu sync.Mutex
	port   conn

	completions chan *EventPacket

	listenerMu sync.Mutex
	listeners  map[string]EventHandler

	lifeMu     sync.Mutex
	running    bool
	closed     bool
	kill       chan struct{}
	readerDone chan struct{}
}

type config struct {
	baud         int
	tag          string
	log          *zap.Logger
	timeout      time.Duration
	retries      int
	asyncHandler AsyncHandler
	eventHandler EventHandler
}

// Option configures a Transport at open time.
type Option func(*config)

// WithBaudRate overrides the default baud rate.
func WithBaudRate(baud int) Option { return func(c *config) { c.baud = baud } }

// WithTag sets the connection tag used in log lines.
func WithTag(tag string) Option { return func(c *config) { c.tag = tag } }

// WithLogger overrides the global zap logger.
func WithLogger(log *zap.Logger) Option { return func(c *config) { c.log = log } }

// WithTimeout sets the default per-attempt completion wait.
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// WithRetries sets how many extra completion waits follow a timeout.
func WithRetries(n int) Option { return func(c *config) { c.retries = n } }

// WithAsyncHandler registers the async data frame callback.
func WithAsyncHandler(h AsyncHandler) Option { return func(c *config) { c.asyncHandler = h } }

// WithEventHandler registers the unsolicited event callback.
func WithEventHandler(h EventHandler) Option { return func(c *config) { c.eventHandler = h } }

// Open opens the serial port, registers the transport as the sole owner
// of that port identity, and starts the background reader. A previous
// transport bound to the same port is stopped first.
func Open(portID string, opts ...Option) (*Transport, error) {
	cfg := config{
		baud:    DefaultBaudRate,
		tag:     "DUT",
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        portID,
		Baud:        cfg.baud,
		ReadTimeout: pollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %d baud: %v", ErrPortOpen, portID, cfg.baud, err)
	}
	t := newTransport(port, portID, cfg)
	claimPort(t)
	t.Start()
	return t, nil
}

func newTransport(port conn, portID string, cfg config) *Transport {
	log := cfg.log
	if log == nil {
		log = zap.L()
	}
	return &Transport{
		portID:       portID,
		tag:          cfg.tag,
		log:          log,
		timeout:      cfg.timeout,
		retries:      cfg.retries,
		asyncHandler: cfg.asyncHandler,
		eventHandler: cfg.eventHandler,
		port:         port,
		completions:  make(chan *EventPacket, completionDepth),
		listeners:    make(map[string]EventHandler),
	}
}

// PortID returns the port identity this transport is bound to.
func (t *Transport) PortID() string { return t.portID }

// Start launches the background reader. It is a no-op while the reader
// is already running or after Close.
func (t *Transport) Start() {
	t.lifeMu.Lock()
	defer t.lifeMu.Unlock()
	if t.running || t.closed {
		return
	}
	t.running = true
	t.kill = make(chan struct{})
	t.readerDone = make(chan struct{})
	go t.readLoop(t.kill, t.readerDone)
}

// Stop signals the reader to exit and waits for it. Idempotent. An
// iteration already reading a frame finishes that frame first.
func (t *Transport) Stop() {
	t.lifeMu.Lock()
	if !t.running {
		t.lifeMu.Unlock()
		return
	}
	t.running = false
	kill, done := t.kill, t.readerDone
	t.lifeMu.Unlock()

	close(kill)
	<-done
}

// Close stops the reader if it is running, releases the port identity,
// and closes the port. The port is closed under the port lock so an
// in-flight frame read cannot interleave with teardown.
func (t *Transport) Close() error {
	t.Stop()

	t.lifeMu.Lock()
	if t.closed {
		t.lifeMu.Unlock()
		return nil
	}
	t.closed = true
	t.lifeMu.Unlock()

	releasePort(t)

	t.portMu.Lock()
	defer t.portMu.Unlock()
	t.port.Flush()
	return t.port.Close()
}

// Subscribe registers an additional unsolicited-event listener and
// returns a token for Unsubscribe.
func (t *Transport) Subscribe(h EventHandler) string {
	id := uuid.NewString()
	t.listenerMu.Lock()
	t.listeners[id] = h
	t.listenerMu.Unlock()
	return id
}

func (t *Transport) Unsubscribe(id string) {
	t.listenerMu.Lock()
	delete(t.listeners, id)
	t.listenerMu.Unlock()
}

// SendOption overrides send behavior for a single call.
type SendOption func(*sendConfig)

type sendConfig struct {
	timeout time.Duration
	retries int
}

// WithSendTimeout overrides the transport's completion wait for this
// command only.
func WithSendTimeout(d time.Duration) SendOption {
	return func(c *sendConfig) { c.timeout = d }
}

// WithSendRetries overrides the transport's retry count for this
// command only.
func WithSendRetries(n int) SendOption {
	return func(c *sendConfig) { c.retries = n }
}

// SendCommand writes the encoded command once and waits for its
// completion event. A timed-out wait is retried without resending the
// command; the firmware holds at most one command in flight, so retries
// apply to the wait alone. Exhausting all retries returns ErrTimeout.
func (t *Transport) SendCommand(cmd *CommandPacket, opts ...SendOption) (*EventPacket, error) {
	cfg := sendConfig{timeout: t.timeout, retries: t.retries}
	for _, opt := range opts {
		opt(&cfg)
	}

	buf, err := cmd.Bytes(binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	t.lifeMu.Lock()
	closed := t.closed
	t.lifeMu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	t.portMu.Lock()
	t.port.Flush()
	_, err = t.port.Write(buf)
	t.portMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write command %#04x: %w", uint16(cmd.Opcode()), err)
	}
	t.log.Info("tx", zap.String("conn", t.tag), zap.String("frame", fmt.Sprintf("%x", buf)))

	for remaining := cfg.retries; ; remaining-- {
		evt, err := t.Retrieve(cfg.timeout)
		if err == nil {
			return evt, nil
		}
		if !errors.Is(err, ErrTimeout) || remaining == 0 {
			return nil, err
		}
		t.log.Warn("response timeout, retrying",
			zap.String("conn", t.tag),
			zap.Int("remaining", remaining))
	}
}

// Retrieve blocks until the oldest queued completion event is available
// or the timeout elapses. Order is strict arrival order. A
// non-positive timeout uses the transport default.
func (t *Transport) Retrieve(timeout time.Duration) (*EventPacket, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}
	select {
	case evt := <-t.completions:
		return evt, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case evt := <-t.completions:
		return evt, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no completion within %v", ErrTimeout, timeout)
	}
}

// readLoop runs until kill closes. Each iteration tries the port lock
// without blocking; if a write is in progress it backs off to the next
// poll rather than waiting.
func (t *Transport) readLoop(kill <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-kill:
			return
		default:
		}

		if !t.portMu.TryLock() {
			time.Sleep(pollInterval)
			continue
		}
		typ, frame, err := t.readFrame()
		t.portMu.Unlock()

		if err != nil {
			if !errors.Is(err, errNoData) {
				t.log.Warn("dropping frame",
					zap.String("conn", t.tag), zap.Error(err))
			}
			continue
		}
		t.log.Info("rx",
			zap.String("conn", t.tag),
			zap.String("frame", fmt.Sprintf("%02x%x", byte(typ), frame)))
		t.dispatch(typ, frame)
	}
}

// readFrame reads one frame off the port: the type tag, a kind-specific
// header carrying the payload length, then the payload. The payload
// read is bounded by frameReadTimeout so a peer that stalls after
// announcing a length cannot wedge the reader.
func (t *Transport) readFrame() (PacketType, []byte, error) {
	var tag [1]byte
	n, err := t.port.Read(tag[:])
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return 0, nil, errNoData
		}
		return 0, nil, err
	}

	typ := PacketType(tag[0])
	deadline := time.Now().Add(frameReadTimeout)

	headerLen := 2
	if typ == PacketTypeAsync {
		headerLen = 4
	}
	frame := make([]byte, headerLen)
	if err := t.readFull(frame, deadline); err != nil {
		return typ, nil, fmt.Errorf("frame header: %w", err)
	}

	var payloadLen int
	if typ == PacketTypeAsync {
		payloadLen = int(binary.LittleEndian.Uint16(frame[2:4]))
	} else {
		payloadLen = int(frame[1])
	}
	payload := make([]byte, payloadLen)
	if err := t.readFull(payload, deadline); err != nil {
		return typ, nil, fmt.Errorf("frame payload: %w", err)
	}
	return typ, append(frame, payload...), nil
}

// readFull fills buf, polling across the port's short read timeout
// until the deadline.
func (t *Transport) readFull(buf []byte, deadline time.Time) error {
	off := 0
	for off < len(buf) {
		n, err := t.port.Read(buf[off:])
		off += n
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if n == 0 && time.Now().After(deadline) {
			return fmt.Errorf("stalled after %d of %d bytes", off, len(buf))
		}
	}
	return nil
}

func (t *Transport) dispatch(typ PacketType, frame []byte) {
	if typ == PacketTypeAsync {
		pkt, err := DecodeAsync(frame)
		if err != nil {
			t.log.Warn("dropping async frame", zap.String("conn", t.tag), zap.Error(err))
			return
		}
		if t.asyncHandler != nil {
			t.asyncHandler(pkt)
		}
		return
	}

	evt, err := DecodeEvent(frame)
	if err != nil {
		t.log.Warn("dropping event frame", zap.String("conn", t.tag), zap.Error(err))
		return
	}
	if evt.Code == EventCodeCommandComplete {
		select {
		case t.completions <- evt:
		default:
			t.log.Warn("completion queue full, dropping event", zap.String("conn", t.tag))
		}
		return
	}
	t.notify(evt)
}

func (t *Transport) notify(evt *EventPacket) {
	if t.eventHandler != nil {
		t.eventHandler(evt)
	}
	t.listenerMu.Lock()
	handlers := make([]EventHandler, 0, len(t.listeners))
	for _, h := range t.listeners {
		handlers = append(handlers, h)
	}
	t.listenerMu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}
