package arp

import (
	"net"
	"time"

	"github.com/juju/errors"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/packet"
	"github.com/mdlayher/raw"
	"golang.org/x/sys/unix"
)

// A Socket selects the link-layer socket implementation used by Listen.
type Socket int

// Socket implementations.
const (
	// SocketRaw uses github.com/mdlayher/raw.
	SocketRaw Socket = iota

	// SocketPacket uses github.com/mdlayher/packet.
	SocketPacket
)

// Framing selects whether packets are exchanged with the kernel as bare
// ARP payloads or inside ethernet frames.
type Framing int

// Framing modes.
const (
	// FramingDatagram lets the kernel add and strip the ethernet header.
	// Outgoing frames carry the interface's own source MAC address.
	FramingDatagram Framing = iota

	// FramingEthernet builds and parses ethernet frames in user space.
	// Outgoing frames carry the packet's sender hardware address as their
	// source MAC address.
	FramingEthernet
)

// Config configures a Conn opened by Listen.  The zero value selects
// SocketRaw and FramingDatagram.
type Config struct {
	Socket  Socket
	Framing Framing
}

// readBufferSize bounds the frames read by a Conn; ARP frames are far
// smaller.
const readBufferSize = 128

// A Conn sends and receives ARP packets on a single network interface.
type Conn struct {
	p       net.PacketConn
	framing Framing
	addr    func(net.HardwareAddr) net.Addr
	rb      []byte
}

// Listen opens a link-layer socket on ifi which receives every ARP frame
// arriving at the interface.
func Listen(ifi *net.Interface, cfg *Config) (*Conn, error) {
	if ifi == nil {
		return nil, errNoInterface
	}
	if cfg == nil {
		cfg = &Config{}
	}

	var (
		p    net.PacketConn
		addr func(net.HardwareAddr) net.Addr
		err  error
	)
	switch cfg.Socket {
	case SocketRaw:
		p, err = raw.ListenPacket(ifi, unix.ETH_P_ARP, &raw.Config{
			LinuxSockDGRAM: cfg.Framing == FramingDatagram,
		})
		addr = rawAddr
	case SocketPacket:
		typ := packet.Raw
		if cfg.Framing == FramingDatagram {
			typ = packet.Datagram
		}
		p, err = packet.Listen(ifi, typ, unix.ETH_P_ARP, nil)
		addr = packetAddr
	default:
		return nil, errors.Errorf("unknown socket type %d", cfg.Socket)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "listen for ARP on %s", ifi.Name)
	}

	c := NewConn(p, cfg.Framing)
	c.addr = addr
	return c, nil
}

// NewConn creates a Conn which exchanges ARP packets over p, using framing
// to decide whether p carries ethernet frames.  Destination addresses are
// passed to p as *raw.Addr values.
func NewConn(p net.PacketConn, framing Framing) *Conn {
	return &Conn{
		p:       p,
		framing: framing,
		addr:    rawAddr,
		rb:      make([]byte, readBufferSize),
	}
}

// Close closes the Conn's socket and stops sending and receiving ARP
// packets.
func (c *Conn) Close() error {
	return c.p.Close()
}

// ReadRequest blocks until an ARP frame is received and returns the packet
// it carries.  Errors from the socket are annotated; decoding errors, such
// as ErrTooShort, are returned unchanged so they can be matched with
// errors.Is.
func (c *Conn) ReadRequest() (*Request, error) {
	b, remote, err := c.readFrom()
	if err != nil {
		return nil, errors.Annotate(err, "receive ARP frame")
	}

	return parseRequest(b, c.framing, remote)
}

// readFrom reads a single frame, returning it along with the link-layer
// address it was received from.  The returned slice is only valid until the
// next call.
func (c *Conn) readFrom() ([]byte, HardwareAddr, error) {
	n, addr, err := c.p.ReadFrom(c.rb)
	if err != nil {
		return nil, HardwareAddr{}, err
	}

	return c.rb[:n], remoteHardwareAddr(addr), nil
}

// WriteTo marshals p and sends it to the link-layer address dst.
func (c *Conn) WriteTo(p *Packet, dst HardwareAddr) (int, error) {
	b := make([]byte, PacketLen)
	if _, err := p.MarshalTo(b); err != nil {
		return 0, err
	}

	if c.framing == FramingEthernet {
		f := &ethernet.Frame{
			Destination: dst.HardwareAddr(),
			Source:      p.SenderHardwareAddr.HardwareAddr(),
			EtherType:   ethernet.EtherTypeARP,
			Payload:     b,
		}

		fb, err := f.MarshalBinary()
		if err != nil {
			return 0, err
		}
		b = fb
	}

	return c.p.WriteTo(b, c.addr(dst.HardwareAddr()))
}

// Announce broadcasts a gratuitous ARP reply for id.
func (c *Conn) Announce(id Identity) error {
	p := Announcement(id)
	if _, err := c.WriteTo(&p, Broadcast); err != nil {
		return errors.Annotatef(err, "announce %s at %s", id.IP, id.HardwareAddr)
	}

	return nil
}

// SetDeadline sets the read and write deadlines associated with the
// connection.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.p.SetDeadline(t)
}

// SetReadDeadline sets the deadline for future raw socket read calls.
// If the deadline is reached, a raw socket read will fail with a timeout
// (see type net.Error) instead of blocking.
// A zero value for t means a raw socket read will not time out.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.p.SetReadDeadline(t)
}

// SetWriteDeadline sets the deadline for future raw socket write calls.
// Even if a write times out, it may return n > 0, indicating that
// some of the data was successfully written.
// A zero value for t means a raw socket write will not time out.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.p.SetWriteDeadline(t)
}

func rawAddr(hw net.HardwareAddr) net.Addr {
	return &raw.Addr{HardwareAddr: hw}
}

func packetAddr(hw net.HardwareAddr) net.Addr {
	return &packet.Addr{HardwareAddr: hw}
}

// remoteHardwareAddr extracts the hardware address from a socket address.
// Unknown or malformed addresses yield the zero HardwareAddr.
func remoteHardwareAddr(addr net.Addr) HardwareAddr {
	var hw net.HardwareAddr
	switch a := addr.(type) {
	case *raw.Addr:
		hw = a.HardwareAddr
	case *packet.Addr:
		hw = a.HardwareAddr
	}

	ha, err := HardwareAddrFrom(hw)
	if err != nil {
		return HardwareAddr{}
	}

	return ha
}
