package arp

import (
	"context"
	"errors"
	"io"
	"net"

	jujuerrors "github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// errNoInterface is returned by ListenAndServe when Server.Iface is not set.
var errNoInterface = errors.New("no network interface")

// A Server is an ARP server, and is used to configure an ARP server's
// behavior.
type Server struct {
	// Iface is the the network interface on which ListenAndServe should
	// listen.
	Iface *net.Interface

	// Config configures the socket opened by ListenAndServe.  If nil, the
	// defaults described by Config are used.
	Config *Config

	// Handler is the handler to use while serving ARP packets.  If this
	// value is nil, DefaultServeMux will be used in place of Handler.
	Handler Handler

	// Announce, if set, is broadcast once as a gratuitous ARP reply before
	// any packets are served.
	Announce *Identity

	// Logger receives warnings about packets which could not be decoded.
	// If nil, the logrus standard logger is used.
	Logger logrus.FieldLogger
}

// ListenAndServe opens a Conn on the network interface specified by s.Iface
// and calls Serve to handle incoming ARP packets.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Iface == nil {
		return errNoInterface
	}

	c, err := Listen(s.Iface, s.Config)
	if err != nil {
		return err
	}

	return s.Serve(ctx, c)
}

// Serve reads ARP packets from c and dispatches each to s.Handler, one at a
// time and in the order they were received.  Serve takes ownership of c and
// closes it on return.
//
// Serve returns nil when ctx is canceled or c reports io.EOF, and any other
// error returned while announcing or reading from c.  Frames which cannot be
// decoded are logged and skipped.
func (s *Server) Serve(ctx context.Context, c *Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		// Closing c unblocks the pending read.
		select {
		case <-ctx.Done():
		case <-done:
		}
		c.Close()
	}()

	if s.Announce != nil {
		if err := c.Announce(*s.Announce); err != nil {
			return err
		}
		s.logger().Infof("announced %s at %s", s.Announce.IP, s.Announce.HardwareAddr)
	}

	for {
		r, err := c.ReadRequest()
		switch {
		case err == nil:
			s.serve(c, r)
		case errors.Is(err, errInvalidARPPacket):
			// Ethernet frames with non-ARP EtherType are ignored
		case isDecodeError(err):
			s.logger().WithError(err).Warn("failed to decode ARP packet")
		case ctx.Err() != nil, jujuerrors.Cause(err) == io.EOF:
			return nil
		default:
			return err
		}
	}
}

// serve handles a single received Request.
func (s *Server) serve(c *Conn, r *Request) {
	if r.RemoteAddr == (HardwareAddr{}) {
		s.logger().Errorf("received ARP packet without link-layer sender: %s", r.SenderHardwareAddr)
		return
	}

	w := &response{
		c:          c,
		remoteAddr: r.RemoteAddr,
	}

	handler := s.Handler
	if handler == nil {
		handler = DefaultServeMux
	}

	handler.ServeARP(w, r)
}

func (s *Server) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}

	return s.Logger
}

// response represents an ARP response, and implements ResponseSender so that
// outbound Packets can be appropriately created and sent to a client.
type response struct {
	c          *Conn
	remoteAddr HardwareAddr
}

// Send marshals an input Packet and sends it to the hardware address
// specified by r.remoteAddr.
func (r *response) Send(p *Packet) (int, error) {
	return r.c.WriteTo(p, r.remoteAddr)
}
