// Package netdev enumerates local network interfaces for the
// convenience lookups the CLI needs (default capture device, loopback
// detection). It is a boundary package: nothing in the codec core
// depends on it.
package netdev

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoDevice reports that no interface satisfied the lookup.
var ErrNoDevice = errors.New("strix: no matching network device")

// Device describes one local interface.
type Device struct {
	Name      string
	Addresses []net.IP
	Loopback  bool
	Up        bool
}

// Interfaces lists local interfaces with their addresses.
func Interfaces() ([]Device, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("strix: list interfaces: %w", err)
	}
	devices := make([]Device, 0, len(ifaces))
	for _, ifc := range ifaces {
		d := Device{
			Name:     ifc.Name,
			Loopback: ifc.Flags&net.FlagLoopback != 0,
			Up:       ifc.Flags&net.FlagUp != 0,
		}
		addrs, err := ifc.Addrs()
		if err == nil {
			for _, a := range addrs {
				if ipn, ok := a.(*net.IPNet); ok {
					d.Addresses = append(d.Addresses, ipn.IP)
				}
			}
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Loopback returns the loopback interface.
func Loopback() (Device, error) {
	devices, err := Interfaces()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Loopback {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: loopback", ErrNoDevice)
}

// Default returns the first up, non-loopback interface with an
// address.
func Default() (Device, error) {
	devices, err := Interfaces()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Up && !d.Loopback && len(d.Addresses) > 0 {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: no up interface with an address", ErrNoDevice)
}
