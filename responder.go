package arp

import (
	"net/netip"

	"github.com/sirupsen/logrus"
)

// An Identity is the address pair a Responder claims: ARP requests for IP
// are answered with HardwareAddr.
type Identity struct {
	IP           netip.Addr
	HardwareAddr HardwareAddr
}

// An ActionKind indicates what a Responder should do with a received packet.
type ActionKind int

// Possible ActionKind values.
const (
	ActionNone ActionKind = iota
	ActionReply
)

// An Action is the outcome of classifying a received packet against an
// Identity.
type Action struct {
	Kind ActionKind

	// Reply is the packet to send when Kind is ActionReply.
	Reply Packet

	// Spoofed reports that the link-layer address the packet was received
	// from differs from its sender hardware address.  It is advisory and
	// never suppresses a reply.
	Spoofed bool
}

// Respond classifies in, which was received from the link-layer address
// observed, and returns the Action to take.  A zero observed address
// disables the spoofing check.
//
// Only requests for id.IP are answered; replies and requests for other
// addresses yield ActionNone.
func (id Identity) Respond(in Packet, observed HardwareAddr) Action {
	a := Action{
		Spoofed: observed != (HardwareAddr{}) && observed != in.SenderHardwareAddr,
	}

	if in.Operation != OperationRequest || in.TargetIP != id.IP {
		return a
	}

	reply, err := NewReply(in, id.HardwareAddr)
	if err != nil {
		// Unreachable: in is a request.
		panic(err)
	}

	a.Kind = ActionReply
	a.Reply = reply
	return a
}

// NewReply builds the reply to request req, announcing that req's target
// IP address is at hardware address mac.  The sender and target addresses
// of req are swapped into the reply.
//
// If req is not a request, ErrInvalidOperation is returned.
func NewReply(req Packet, mac HardwareAddr) (Packet, error) {
	if req.Operation != OperationRequest {
		return Packet{}, ErrInvalidOperation
	}

	return Packet{
		Operation:          OperationReply,
		SenderHardwareAddr: mac,
		SenderIP:           req.TargetIP,
		TargetHardwareAddr: req.SenderHardwareAddr,
		TargetIP:           req.SenderIP,
	}, nil
}

// Announcement returns a gratuitous ARP reply which announces id to every
// host on the link.
func Announcement(id Identity) Packet {
	return Packet{
		Operation:          OperationReply,
		SenderHardwareAddr: id.HardwareAddr,
		SenderIP:           id.IP,
		TargetHardwareAddr: Broadcast,
		TargetIP:           id.IP,
	}
}

// A Responder is a Handler which answers ARP requests for a single claimed
// Identity.
type Responder struct {
	// Identity is the claimed address pair.  It must not be modified once
	// the Responder is serving.
	Identity Identity

	// Logger receives trace output for every packet, spoofing warnings and
	// send failures.  If nil, the logrus standard logger is used.
	Logger logrus.FieldLogger
}

// ServeARP implements Handler.
func (rs *Responder) ServeARP(w ResponseSender, r *Request) {
	log := rs.logger().WithField("from", r.RemoteAddr)
	log.Tracef("received ARP %s: %s (%s) asks for %s (%s)",
		r.Operation, r.SenderIP, r.SenderHardwareAddr, r.TargetIP, r.TargetHardwareAddr)

	a := rs.Identity.Respond(r.Packet, r.RemoteAddr)
	if a.Spoofed {
		log.Warnf("received ARP with sender MAC %s from MAC %s", r.SenderHardwareAddr, r.RemoteAddr)
	}
	if a.Kind != ActionReply {
		return
	}

	log.Tracef("reply: %s is-at %s", a.Reply.SenderIP, a.Reply.SenderHardwareAddr)
	if _, err := w.Send(&a.Reply); err != nil {
		log.WithError(err).Error("failed to send ARP reply")
	}
}

func (rs *Responder) logger() logrus.FieldLogger {
	if rs.Logger == nil {
		return logrus.StandardLogger()
	}

	return rs.Logger
}
