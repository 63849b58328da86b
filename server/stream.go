package server

import (
	"context"
	"io"
	"iter"
	gonet "net"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by stream operations once the listener is
	// closed.
	ErrClosed = errors.New("listener closed")

	// ErrNoAddress is returned by SendTo when a destination resolves to no
	// usable address.
	ErrNoAddress = errors.New("destination resolved to no IPv4 address")
)

// Stream is the application's view of a listener: payloads of fully
// connected peers come out, arbitrary datagrams go in.
//
// Payloads are delivered with their tag byte. Outgoing datagrams are sent
// as given, without any framing.
type Stream struct {
	// ctx is the listener's lifetime.
	ctx       context.Context
	inbound   <-chan Datagram
	envelopes chan<- envelope
}

// Receive waits for the next payload. It returns ErrClosed once the
// listener is closed, even if payloads are still queued.
func (s *Stream) Receive(ctx context.Context) (Datagram, error) {
	if s.ctx.Err() != nil {
		return Datagram{}, ErrClosed
	}
	select {
	case <-s.ctx.Done():
		return Datagram{}, ErrClosed
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case d := <-s.inbound:
		if s.ctx.Err() != nil {
			return Datagram{}, ErrClosed
		}
		return d, nil
	}
}

// ReceiveFrom copies the next payload into p. If p is too small, the
// payload is truncated and io.ErrShortBuffer is returned along with the
// sender.
func (s *Stream) ReceiveFrom(p []byte) (int, *gonet.UDPAddr, error) {
	d, err := s.Receive(context.Background())
	if err != nil {
		return 0, nil, err
	}
	n := copy(p, d.Payload)
	if n < len(d.Payload) {
		return n, d.Addr, io.ErrShortBuffer
	}
	return n, d.Addr, nil
}

// SendTo resolves destination ("host:port") and queues b for every IPv4
// address it resolves to.
func (s *Stream) SendTo(ctx context.Context, b []byte, destination string) error {
	host, port, err := gonet.SplitHostPort(destination)
	if err != nil {
		return errors.Wrapf(err, "parsing destination %q", destination)
	}
	portNum, err := gonet.DefaultResolver.LookupPort(ctx, "udp", port)
	if err != nil {
		return errors.Wrapf(err, "resolving port of %q", destination)
	}
	ips, err := gonet.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return errors.Wrapf(err, "resolving %q", destination)
	}

	var addrs []*gonet.UDPAddr
	for _, ip := range ips {
		if ip4 := ip.IP.To4(); ip4 != nil {
			addrs = append(addrs, &gonet.UDPAddr{IP: ip4, Port: portNum})
		}
	}
	if len(addrs) == 0 {
		return errors.Wrapf(ErrNoAddress, "%q", destination)
	}

	for _, addr := range addrs {
		if err := s.WriteTo(ctx, b, addr); err != nil {
			return errors.Wrapf(err, "sending to %s", addr)
		}
	}
	return nil
}

// WriteTo queues b for addr. It blocks while the send queue is full.
func (s *Stream) WriteTo(ctx context.Context, b []byte, addr *gonet.UDPAddr) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	payload := make([]byte, len(b))
	copy(payload, b)

	select {
	case s.envelopes <- envelope{kind: outbound, datagram: Datagram{Addr: addr, Payload: payload}}:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Incoming yields payloads until ctx is done, the listener is closed or the
// loop body breaks.
func (s *Stream) Incoming(ctx context.Context) iter.Seq2[*gonet.UDPAddr, []byte] {
	return func(yield func(*gonet.UDPAddr, []byte) bool) {
		for {
			d, err := s.Receive(ctx)
			if err != nil {
				return
			}
			if !yield(d.Addr, d.Payload) {
				return
			}
		}
	}
}
