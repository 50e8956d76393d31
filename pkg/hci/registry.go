package hci

import "sync"

// Process-wide port ownership. At most one live transport may own a
// port identity; claiming a port stops the previous owner's reader so
// two readers never contend for the same device.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*Transport)
)

func claimPort(t *Transport) {
	registryMu.Lock()
	prev := registry[t.portID]
	registry[t.portID] = t
	registryMu.Unlock()

	if prev != nil && prev != t {
		prev.Stop()
		prev.port.Flush()
	}
}

func releasePort(t *Transport) {
	registryMu.Lock()
	if registry[t.portID] == t {
		delete(registry, t.portID)
	}
	registryMu.Unlock()
}

// Session opens a transport, runs fn, and guarantees the reader is
// stopped and the port closed on both normal and error return.
func Session(portID string, fn func(*Transport) error, opts ...Option) error {
	t, err := Open(portID, opts...)
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(t)
}
