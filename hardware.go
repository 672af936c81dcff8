package arp

import (
	"net"

	"github.com/mdlayher/ethernet"
)

// A HardwareAddr is an Ethernet MAC address.  Unlike net.HardwareAddr, it
// has a fixed size, so it can be compared with == and used as a map key.
type HardwareAddr [6]byte

// Broadcast is the Ethernet broadcast address, used as the target hardware
// address of gratuitous ARP announcements.
var Broadcast = mustHardwareAddr(ethernet.Broadcast)

// HardwareAddrFrom converts a net.HardwareAddr to a HardwareAddr.
//
// If hw is not exactly 6 bytes in length, ErrInvalidHardwareAddr is
// returned.
func HardwareAddrFrom(hw net.HardwareAddr) (HardwareAddr, error) {
	var a HardwareAddr
	if len(hw) != len(a) {
		return a, ErrInvalidHardwareAddr
	}

	copy(a[:], hw)
	return a, nil
}

// ParseHardwareAddr parses s as an Ethernet MAC address, in any of the
// formats accepted by net.ParseMAC.
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return HardwareAddr{}, ErrInvalidHardwareAddr
	}

	return HardwareAddrFrom(hw)
}

// HardwareAddr returns a as a net.HardwareAddr.  The returned slice does not
// alias a.
func (a HardwareAddr) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, len(a))
	copy(hw, a[:])
	return hw
}

// String returns a in colon-separated hexadecimal form.
func (a HardwareAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

func mustHardwareAddr(hw net.HardwareAddr) HardwareAddr {
	a, err := HardwareAddrFrom(hw)
	if err != nil {
		panic(err)
	}

	return a
}
