package arp

import (
	"errors"
	"io"

	"github.com/mdlayher/ethernet"
)

// errInvalidARPPacket is returned when an ethernet frame does not
// indicate that an ARP packet is contained in its payload.
var errInvalidARPPacket = errors.New("invalid ARP packet")

// A Request is a processed ARP packet received by a server, along with the
// link-layer address it was received from.
type Request struct {
	Packet

	// RemoteAddr is the link-layer source address of the frame which
	// carried this Request.  It is compared against SenderHardwareAddr to
	// detect spoofed packets.
	RemoteAddr HardwareAddr
}

// parseRequest unmarshals an ARP packet, optionally wrapped in an ethernet
// frame, into a Request.  remote is the link-layer address reported by the
// socket, and is replaced by the frame's source address when framing is
// FramingEthernet.
func parseRequest(buf []byte, framing Framing, remote HardwareAddr) (*Request, error) {
	payload := buf
	if framing == FramingEthernet {
		f := new(ethernet.Frame)
		if err := f.UnmarshalBinary(buf); err != nil {
			return nil, err
		}
		if f.EtherType != ethernet.EtherTypeARP {
			return nil, errInvalidARPPacket
		}

		src, err := HardwareAddrFrom(f.Source)
		if err != nil {
			return nil, err
		}

		payload, remote = f.Payload, src
	}

	r := &Request{RemoteAddr: remote}
	if err := r.Packet.UnmarshalBinary(payload); err != nil {
		return nil, err
	}

	return r, nil
}

// isDecodeError reports whether err was returned by parseRequest, as opposed
// to the socket a frame was read from.
func isDecodeError(err error) bool {
	for _, de := range []error{
		ErrTooShort,
		ErrUnsupportedAddressFamily,
		ErrInvalidOperation,
		ErrInvalidHardwareAddr,
		errInvalidARPPacket,
		// Short ethernet frame.
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, de) {
			return true
		}
	}

	return false
}
