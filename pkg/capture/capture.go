// Package capture is the thin live-wire boundary: open an interface
// by name, pull raw frames with their capture timestamps, inject raw
// frames. Failures from the underlying pcap layer are surfaced
// unchanged under ErrWire; nothing here retries.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/pcap"
)

// ErrWire wraps failures delegated from the capture layer.
var ErrWire = errors.New("strix: wire operation failed")

// Handle wraps one open capture endpoint.
type Handle struct {
	pc   *pcap.Handle
	name string
}

// OpenLive opens a network interface for capture.
func OpenLive(iface string, snaplen int32, promisc bool, timeout time.Duration) (*Handle, error) {
	pc, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrWire, iface, err)
	}
	return &Handle{pc: pc, name: iface}, nil
}

// OpenOffline opens a stored capture for replay through the same
// boundary as a live interface.
func OpenOffline(path string) (*Handle, error) {
	pc, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrWire, path, err)
	}
	return &Handle{pc: pc, name: path}, nil
}

// Name returns the interface or file the handle was opened on.
func (h *Handle) Name() string { return h.name }

// LinkType returns the pcap link type of the handle.
func (h *Handle) LinkType() uint16 { return uint16(h.pc.LinkType()) }

// ReadFrame returns the next raw frame and its capture timestamp.
func (h *Handle) ReadFrame() ([]byte, time.Time, error) {
	data, ci, err := h.pc.ReadPacketData()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: read on %s: %v", ErrWire, h.name, err)
	}
	return data, ci.Timestamp, nil
}

// WriteFrame injects a raw frame on the interface.
func (h *Handle) WriteFrame(frame []byte) error {
	if err := h.pc.WritePacketData(frame); err != nil {
		return fmt.Errorf("%w: write on %s: %v", ErrWire, h.name, err)
	}
	return nil
}

// SetFilter installs a BPF filter expression on the handle.
func (h *Handle) SetFilter(expr string) error {
	if err := h.pc.SetBPFFilter(expr); err != nil {
		return fmt.Errorf("%w: filter %q: %v", ErrWire, expr, err)
	}
	return nil
}

// Close releases the handle.
func (h *Handle) Close() {
	h.pc.Close()
}
