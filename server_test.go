package arp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/raw"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestServeIgnoreShortPacket(t *testing.T) {
	logger, hook := test.NewNullLogger()

	p := testServe(t, FramingDatagram, logger, nil, frame{b: []byte{0}, from: hwA})
	if l := len(p.written); l > 0 {
		t.Fatalf("should have no reply, but got %d frames", l)
	}

	e := hook.LastEntry()
	if e == nil {
		t.Fatal("expected a decode warning")
	}
	if want, got := logrus.WarnLevel, e.Level; want != got {
		t.Fatalf("unexpected log level: %v != %v", want, got)
	}
	if want, got := ErrTooShort, e.Data[logrus.ErrorKey]; want != got {
		t.Fatalf("unexpected logged error: %v != %v", want, got)
	}
}

func TestServeIgnoreWrongEtherType(t *testing.T) {
	logger, hook := test.NewNullLogger()

	// Approximation of 14 byte ethernet frame header and
	// 42 byte blank payload (EtherType 0x0000).
	p := testServe(t, FramingEthernet, logger, nil, frame{b: make([]byte, 56), from: hwA})
	if l := len(p.written); l > 0 {
		t.Fatalf("should have no reply, but got %d frames", l)
	}
	if e := hook.LastEntry(); e != nil {
		t.Fatalf("unexpected log entry: %q", e.Message)
	}
}

func TestServeIgnoreMissingRemoteAddr(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var called bool
	p := testServe(t, FramingDatagram, logger, HandlerFunc(func(w ResponseSender, r *Request) {
		called = true
	}), frame{b: requestBytes})

	if called {
		t.Fatal("handler should not be called")
	}
	if l := len(p.written); l > 0 {
		t.Fatalf("should have no reply, but got %d frames", l)
	}
}

func TestServeNoResponse(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var got *Request
	p := testServe(t, FramingDatagram, logger, HandlerFunc(func(w ResponseSender, r *Request) {
		got = r
	}), frame{b: append(append([]byte(nil), requestBytes...), make([]byte, 40)...), from: hwA})

	if want := (&Request{Packet: request, RemoteAddr: hwA}); got == nil || *want != *got {
		t.Fatalf("unexpected request:\n- want: %v\n-  got: %v", want, got)
	}
	if l := len(p.written); l > 0 {
		t.Fatalf("should have no reply, but got %d frames", l)
	}
}

func TestServeOK(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rs := &Responder{Identity: testIdentity, Logger: logger}

	other := append([]byte(nil), requestBytes...)
	other[PacketLen-1] = 9

	p := testServe(t, FramingDatagram, logger, rs,
		// Not for the claimed IP.
		frame{b: other, from: hwA},
		frame{b: replyBytes, from: hwB},
		frame{b: requestBytes, from: hwA},
	)

	if want, got := 1, len(p.written); want != got {
		t.Fatalf("unexpected number of replies: %v != %v", want, got)
	}

	w := p.written[0]
	if want, got := replyBytes, w.b; !bytes.Equal(want, got) {
		t.Fatalf("unexpected reply bytes:\n- want: %v\n-  got: %v", want, got)
	}

	addr, ok := w.addr.(*raw.Addr)
	if !ok {
		t.Fatalf("unexpected destination address type: %T", w.addr)
	}
	if want, got := hwA.HardwareAddr(), addr.HardwareAddr; !bytes.Equal(want, got) {
		t.Fatalf("unexpected destination:\n- want: %v\n-  got: %v", want, got)
	}
}

func TestServeOKEthernet(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rs := &Responder{Identity: testIdentity, Logger: logger}

	p := testServe(t, FramingEthernet, logger, rs,
		frame{b: mustFrame(t, Broadcast, hwA, requestBytes), from: hwA},
	)

	if want, got := 1, len(p.written); want != got {
		t.Fatalf("unexpected number of replies: %v != %v", want, got)
	}

	// Unmarshal ethernet frame and verify fields
	f := new(ethernet.Frame)
	if err := f.UnmarshalBinary(p.written[0].b); err != nil {
		t.Fatal(err)
	}

	if want, got := hwA.HardwareAddr(), f.Destination; !bytes.Equal(want, got) {
		t.Fatalf("unexpected ethernet frame destination:\n- want: %v\n-  got: %v",
			want, got)
	}
	if want, got := hwB.HardwareAddr(), f.Source; !bytes.Equal(want, got) {
		t.Fatalf("unexpected ethernet frame source:\n- want: %v\n-  got: %v",
			want, got)
	}
	if want, got := ethernet.EtherTypeARP, f.EtherType; want != got {
		t.Fatalf("unexpected ethernet frame EtherType: %v != %v", want, got)
	}

	// Unmarshal ARP packet and verify fields
	var pkt Packet
	if err := pkt.UnmarshalBinary(f.Payload); err != nil {
		t.Fatal(err)
	}
	if want, got := reply, pkt; want != got {
		t.Fatalf("unexpected ARP packet:\n- want: %v\n-  got: %v", want, got)
	}
}

func TestServeReadError(t *testing.T) {
	errReadFrom := errors.New("test error")

	p := &bufferPacketConn{err: errReadFrom}
	s := &Server{Handler: HandlerFunc(func(ResponseSender, *Request) {})}

	err := s.Serve(context.Background(), NewConn(p, FramingDatagram))
	if want, got := errReadFrom, jujuerrors.Cause(err); want != got {
		t.Fatalf("unexpected error cause: %v != %v", want, got)
	}
}

func TestServeDecodeErrorsContinue(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rs := &Responder{Identity: testIdentity, Logger: logger}

	badOp := append([]byte(nil), requestBytes...)
	badOp[7] = 3
	badFamily := append([]byte(nil), requestBytes...)
	badFamily[4] = 20

	p := testServe(t, FramingDatagram, logger, rs,
		frame{b: requestBytes[:10], from: hwA},
		frame{b: badOp, from: hwA},
		frame{b: badFamily, from: hwA},
		frame{b: requestBytes, from: hwA},
	)

	if want, got := 1, len(p.written); want != got {
		t.Fatalf("unexpected number of replies: %v != %v", want, got)
	}

	var errs []error
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			errs = append(errs, e.Data[logrus.ErrorKey].(error))
		}
	}
	want := []error{ErrTooShort, ErrInvalidOperation, ErrUnsupportedAddressFamily}
	if len(want) != len(errs) {
		t.Fatalf("unexpected decode warnings: %v != %v", want, errs)
	}
	for i := range want {
		if want[i] != errs[i] {
			t.Fatalf("unexpected decode warning %d: %v != %v", i, want[i], errs[i])
		}
	}
}

func TestServeAnnounce(t *testing.T) {
	logger, _ := test.NewNullLogger()

	p := &bufferPacketConn{
		frames: []frame{{b: requestBytes, from: hwA}},
	}
	s := &Server{
		Handler:  &Responder{Identity: testIdentity, Logger: logger},
		Announce: &testIdentity,
		Logger:   logger,
	}
	if err := s.Serve(context.Background(), NewConn(p, FramingDatagram)); err != nil {
		t.Fatal(err)
	}

	if want, got := 2, len(p.written); want != got {
		t.Fatalf("unexpected number of frames: %v != %v", want, got)
	}

	// The announcement goes out before any request is answered.
	var pkt Packet
	if err := pkt.UnmarshalBinary(p.written[0].b); err != nil {
		t.Fatal(err)
	}
	if want, got := Announcement(testIdentity), pkt; want != got {
		t.Fatalf("unexpected announcement:\n- want: %v\n-  got: %v", want, got)
	}
	if want, got := ethernet.Broadcast, p.written[0].addr.(*raw.Addr).HardwareAddr; !bytes.Equal(want, got) {
		t.Fatalf("unexpected announcement destination: %v != %v", want, got)
	}
	if want, got := replyBytes, p.written[1].b; !bytes.Equal(want, got) {
		t.Fatalf("unexpected reply bytes:\n- want: %v\n-  got: %v", want, got)
	}
}

func TestServeAnnounceError(t *testing.T) {
	bad := Identity{HardwareAddr: hwB}
	s := &Server{
		Handler:  NewServeMux(),
		Announce: &bad,
	}

	err := s.Serve(context.Background(), NewConn(&bufferPacketConn{}, FramingDatagram))
	if want, got := ErrInvalidIP, jujuerrors.Cause(err); want != got {
		t.Fatalf("unexpected error cause: %v != %v", want, got)
	}
}

func TestListenAndServeNoInterface(t *testing.T) {
	s := &Server{Handler: NewServeMux()}

	if want, got := errNoInterface, s.ListenAndServe(context.Background()); want != got {
		t.Fatalf("unexpected error: %v != %v", want, got)
	}
	if _, err := Listen(nil, nil); err != errNoInterface {
		t.Fatalf("unexpected Listen error: %v != %v", errNoInterface, err)
	}
}

func TestServeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &blockingPacketConn{closeC: make(chan struct{})}
	s := &Server{Handler: HandlerFunc(func(ResponseSender, *Request) {})}

	errC := make(chan error, 1)
	go func() {
		errC <- s.Serve(ctx, NewConn(p, FramingDatagram))
	}()

	cancel()

	select {
	case err := <-errC:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

// testServe serves frames with handler until they are exhausted, and returns
// the connection used so that written frames can be inspected.
func testServe(t *testing.T, framing Framing, logger logrus.FieldLogger, handler Handler, frames ...frame) *bufferPacketConn {
	t.Helper()

	p := &bufferPacketConn{frames: frames}
	s := &Server{
		Handler: handler,
		Logger:  logger,
	}
	if handler == nil {
		s.Handler = NewServeMux()
	}

	if err := s.Serve(context.Background(), NewConn(p, framing)); err != nil {
		t.Fatal(err)
	}

	return p
}

// A frame is a frame read or written by a bufferPacketConn.
type frame struct {
	b    []byte
	from HardwareAddr
	addr net.Addr
}

// bufferPacketConn is a net.PacketConn which reads queued frames, then
// returns err or io.EOF, and records frames written to it.
type bufferPacketConn struct {
	frames  []frame
	err     error
	written []frame

	noopPacketConn
}

func (p *bufferPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if len(p.frames) == 0 {
		if p.err != nil {
			return 0, nil, p.err
		}
		return 0, nil, io.EOF
	}

	f := p.frames[0]
	p.frames = p.frames[1:]

	var addr net.Addr
	if f.from != (HardwareAddr{}) {
		addr = &raw.Addr{HardwareAddr: f.from.HardwareAddr()}
	}

	return copy(b, f.b), addr, nil
}

func (p *bufferPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	p.written = append(p.written, frame{
		b:    append([]byte(nil), b...),
		addr: addr,
	})
	return len(b), nil
}

// blockingPacketConn is a net.PacketConn whose reads block until it is
// closed.
type blockingPacketConn struct {
	once   sync.Once
	closeC chan struct{}

	noopPacketConn
}

func (p *blockingPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	<-p.closeC
	return 0, nil, errors.New("use of closed connection")
}

func (p *blockingPacketConn) Close() error {
	p.once.Do(func() { close(p.closeC) })
	return nil
}

// noopPacketConn is a net.PacketConn which simply no-ops any input.  It is
// embedded in other implementations so they do not have to implement every
// single method.
type noopPacketConn struct{}

func (noopPacketConn) ReadFrom(b []byte) (int, net.Addr, error) { return 0, nil, nil }
func (noopPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) { return 0, nil }

func (noopPacketConn) Close() error                       { return nil }
func (noopPacketConn) LocalAddr() net.Addr                { return nil }
func (noopPacketConn) SetDeadline(t time.Time) error      { return nil }
func (noopPacketConn) SetReadDeadline(t time.Time) error  { return nil }
func (noopPacketConn) SetWriteDeadline(t time.Time) error { return nil }
