package arp

import (
	"encoding/binary"
	"errors"
	"net/netip"

	"github.com/mdlayher/ethernet"
)

var (
	// ErrTooShort is returned by UnmarshalBinary when a buffer is too short
	// to contain an Ethernet/IPv4 ARP packet.
	ErrTooShort = errors.New("ARP packet too short")

	// ErrUnsupportedAddressFamily is returned by UnmarshalBinary when a
	// packet does not describe Ethernet hardware addresses and IPv4
	// protocol addresses.
	ErrUnsupportedAddressFamily = errors.New("unsupported ARP address family")

	// ErrInvalidOperation is returned when a packet carries an operation
	// other than request or reply, or when a reply is built from a packet
	// which is not a request.
	ErrInvalidOperation = errors.New("invalid ARP operation")

	// ErrBufferTooSmall is returned by MarshalTo when the destination
	// buffer cannot hold a full packet.
	ErrBufferTooSmall = errors.New("buffer too small for ARP packet")

	// ErrInvalidHardwareAddr is returned when a hardware address is not a
	// 6 byte Ethernet MAC address.
	ErrInvalidHardwareAddr = errors.New("invalid hardware address")

	// ErrInvalidIP is returned when one or more invalid IPv4 addresses are
	// passed to NewPacket or found in a Packet passed to MarshalTo.
	ErrInvalidIP = errors.New("invalid IPv4 address")
)

// An Operation is an ARP operation, such as request or reply.
type Operation uint16

// Operation constants which indicate an ARP request or reply.
const (
	OperationRequest Operation = 1
	OperationReply   Operation = 2
)

func (o Operation) valid() bool {
	return o == OperationRequest || o == OperationReply
}

const (
	// hardwareTypeEthernet is the IANA hardware type for Ethernet.
	hardwareTypeEthernet = 1

	hardwareAddrLen = 6
	ipLen           = 4

	// PacketLen is the length of an Ethernet/IPv4 ARP packet on the wire.
	PacketLen = 8 + 2*hardwareAddrLen + 2*ipLen
)

// A Packet is an Ethernet/IPv4 ARP packet, as described in RFC 826.
//
// The hardware type, protocol type and address lengths are implied: a
// Packet always describes Ethernet hardware addresses and IPv4 protocol
// addresses.  Packets are values; two Packets are equal when all of their
// fields are equal.
type Packet struct {
	// Operation specifies the ARP operation being performed, such as request
	// or reply.
	Operation Operation

	// SenderHardwareAddr specifies the hardware address of the sender of
	// this Packet.
	SenderHardwareAddr HardwareAddr

	// SenderIP specifies the IPv4 address of the sender of this Packet.
	SenderIP netip.Addr

	// TargetHardwareAddr specifies the hardware address of the target of
	// this Packet.
	TargetHardwareAddr HardwareAddr

	// TargetIP specifies the IPv4 address of the target of this Packet.
	TargetIP netip.Addr
}

// NewPacket creates a new Packet from an input Operation and hardware/IPv4
// address values for both a sender and target.
//
// If op is neither OperationRequest nor OperationReply, ErrInvalidOperation
// is returned.  If either IP address is not an IPv4 address, ErrInvalidIP is
// returned.  IPv4-mapped IPv6 addresses are accepted and unmapped.
func NewPacket(op Operation, srcHW HardwareAddr, srcIP netip.Addr, dstHW HardwareAddr, dstIP netip.Addr) (*Packet, error) {
	if !op.valid() {
		return nil, ErrInvalidOperation
	}

	srcIP, dstIP = srcIP.Unmap(), dstIP.Unmap()
	if !srcIP.Is4() || !dstIP.Is4() {
		return nil, ErrInvalidIP
	}

	return &Packet{
		Operation:          op,
		SenderHardwareAddr: srcHW,
		SenderIP:           srcIP,
		TargetHardwareAddr: dstHW,
		TargetIP:           dstIP,
	}, nil
}

// MarshalBinary allocates a byte slice containing the data from a Packet.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, PacketLen)
	if _, err := p.MarshalTo(b); err != nil {
		return nil, err
	}

	return b, nil
}

// MarshalTo writes the binary form of a Packet into b, returning the number
// of bytes written.  Only the first PacketLen bytes of b are modified.
//
// If b is shorter than PacketLen, ErrBufferTooSmall is returned.  An unknown
// operation yields ErrInvalidOperation, and an address which is not in
// 4-byte IPv4 form, including an IPv4-mapped IPv6 address, yields
// ErrInvalidIP.  NewPacket unmaps such addresses.
func (p *Packet) MarshalTo(b []byte) (int, error) {
	// 2 bytes: hardware type
	// 2 bytes: protocol type
	// 1 byte : hardware address length
	// 1 byte : protocol length
	// 2 bytes: operation
	// 6 bytes: sender hardware address
	// 4 bytes: sender protocol address
	// 6 bytes: target hardware address
	// 4 bytes: target protocol address
	if len(b) < PacketLen {
		return 0, ErrBufferTooSmall
	}
	if !p.Operation.valid() {
		return 0, ErrInvalidOperation
	}

	spa, tpa := p.SenderIP, p.TargetIP
	if !spa.Is4() || !tpa.Is4() {
		return 0, ErrInvalidIP
	}

	binary.BigEndian.PutUint16(b[0:2], hardwareTypeEthernet)
	binary.BigEndian.PutUint16(b[2:4], uint16(ethernet.EtherTypeIPv4))

	b[4] = hardwareAddrLen
	b[5] = ipLen

	binary.BigEndian.PutUint16(b[6:8], uint16(p.Operation))

	copy(b[8:14], p.SenderHardwareAddr[:])
	copy(b[14:18], spa.AsSlice())
	copy(b[18:24], p.TargetHardwareAddr[:])
	copy(b[24:28], tpa.AsSlice())

	return PacketLen, nil
}

// UnmarshalBinary unmarshals a raw byte slice into a Packet.  Bytes past
// PacketLen, such as Ethernet padding, are ignored.
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) < PacketLen {
		return ErrTooShort
	}

	if binary.BigEndian.Uint16(b[0:2]) != hardwareTypeEthernet ||
		binary.BigEndian.Uint16(b[2:4]) != uint16(ethernet.EtherTypeIPv4) ||
		b[4] != hardwareAddrLen ||
		b[5] != ipLen {
		return ErrUnsupportedAddressFamily
	}

	op := Operation(binary.BigEndian.Uint16(b[6:8]))
	if !op.valid() {
		return ErrInvalidOperation
	}

	var sha, tha HardwareAddr
	copy(sha[:], b[8:14])
	copy(tha[:], b[18:24])

	*p = Packet{
		Operation:          op,
		SenderHardwareAddr: sha,
		SenderIP:           netip.AddrFrom4([4]byte(b[14:18])),
		TargetHardwareAddr: tha,
		TargetIP:           netip.AddrFrom4([4]byte(b[24:28])),
	}

	return nil
}
