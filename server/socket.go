package server

import (
	"context"
	gonet "net"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/go-raknet/protocol"
	"badc0de.net/pkg/go-raknet/session"
)

// maxDatagramSize is the largest UDP payload over IPv4.
const maxDatagramSize = 65507

// socket owns the UDP endpoint. It answers pings and rejects incompatible
// clients itself; everything that needs per-peer state goes to the
// registry.
type socket struct {
	conn    *gonet.UDPConn
	state   *State
	table   *session.Table
	cfg     Config
	metrics *metrics
	events  trace.EventLog

	envelopes chan<- envelope
	outbound  <-chan Datagram
}

// listen reads datagrams until the listener is disabled or ctx is done.
//
// A blocked read only notices teardown once it returns, so Close sets a read
// deadline to wake it up.
func (s *socket) listen(ctx context.Context) error {
	glog.V(2).Infof("listening on %s", s.conn.LocalAddr())
	buf := make([]byte, maxDatagramSize)
	for s.state.Enabled() && ctx.Err() == nil {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, gonet.ErrClosed) {
				return nil
			}
			glog.Errorf("failed to read from socket: %s", err)
			s.events.Errorf("read: %s", err)
			continue
		}
		if n == 0 {
			continue
		}
		s.metrics.datagrams.Inc()

		b := make([]byte, n)
		copy(b, buf[:n])
		s.route(addr, b)
	}
	return nil
}

// send writes outbound datagrams until the registry closes the channel.
func (s *socket) send() error {
	for d := range s.outbound {
		if _, err := s.conn.WriteToUDP(d.Payload, d.Addr); err != nil {
			glog.Errorf("failed to write %d bytes to %s: %s", len(d.Payload), d.Addr, err)
		}
	}
	glog.V(2).Infof("writer on %s done", s.conn.LocalAddr())
	return nil
}

func (s *socket) route(addr *gonet.UDPAddr, b []byte) {
	id := protocol.ParseID(b[0])
	glog.V(2).Infof("%s: %s, %d bytes", addr, id, len(b))

	switch {
	case id == protocol.IDUnconnectedPing || id == protocol.IDUnconnectedPingOpen:
		s.handlePing(addr, id, b)
	case id == protocol.IDOpenConnectionRequest1:
		s.handleOpenConnectionRequest1(addr, b)
	case protocol.IsUnconnected(id) || s.table.Has(addr):
		s.forward(envelope{kind: inbound, datagram: Datagram{Addr: addr, Payload: b}})
	default:
		glog.V(2).Infof("%s: dropping 0x%02x from peer without connection; body: % x", addr, b[0], b[1:])
	}
}

// forward hands env to the registry. When the registry is behind, the new
// envelope is dropped; the peer will retransmit.
func (s *socket) forward(env envelope) {
	select {
	case s.envelopes <- env:
	default:
		s.metrics.dropped.WithLabelValues("registry").Inc()
		glog.V(2).Infof("%s: registry queue full, dropping %s", env.datagram.Addr, env.kind)
	}
}

func (s *socket) decode(p protocol.Packet, addr *gonet.UDPAddr, b []byte) bool {
	if err := protocol.Decode(p, b[1:]); err != nil {
		s.metrics.decodeErrors.Inc()
		glog.Warningf("%s: %s", addr, err)
		return false
	}
	return true
}

func (s *socket) write(addr *gonet.UDPAddr, p protocol.Packet) {
	b, err := protocol.Encode(p)
	if err != nil {
		glog.Errorf("encoding %s for %s: %s", p.ID(), addr, err)
		return
	}
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		glog.Errorf("failed to write %s to %s: %s", p.ID(), addr, err)
	}
}

func (s *socket) handlePing(addr *gonet.UDPAddr, id protocol.PacketID, b []byte) {
	ping := &protocol.UnconnectedPing{OpenConnections: id == protocol.IDUnconnectedPingOpen}
	if !s.decode(ping, addr, b) {
		return
	}
	if ping.Magic != protocol.Magic {
		glog.V(2).Infof("%s: ping with bad magic % x", addr, ping.Magic)
		return
	}

	d := s.state.Descriptor()
	online := s.table.Len()
	if ping.OpenConnections && online >= d.MaxPlayers {
		glog.V(2).Infof("%s: full (%d/%d), not answering", addr, online, d.MaxPlayers)
		return
	}

	guid := s.state.GUID()
	s.write(addr, &protocol.UnconnectedPong{
		Time:       ping.Time,
		ServerGUID: int64(guid),
		MOTD:       d.Format(guid, online, s.conn.LocalAddr().(*gonet.UDPAddr).Port),
	})
}

func (s *socket) handleOpenConnectionRequest1(addr *gonet.UDPAddr, b []byte) {
	req := &protocol.OpenConnectionRequest1{}
	if !s.decode(req, addr, b) {
		return
	}
	if req.Magic != protocol.Magic {
		glog.V(2).Infof("%s: open connection request with bad magic % x", addr, req.Magic)
		return
	}
	if req.Protocol != protocol.ProtocolVersion {
		glog.Warningf("%s: incompatible protocol %d, want %d", addr, req.Protocol, protocol.ProtocolVersion)
		s.write(addr, &protocol.IncompatibleProtocol{
			Protocol:   protocol.ProtocolVersion,
			ServerGUID: s.state.GUID(),
		})
		return
	}

	mtu := req.MTU
	if mtu > s.cfg.MaxMTU {
		mtu = s.cfg.MaxMTU
	}
	conn := session.New(addr)
	if err := conn.Open(mtu); err != nil {
		glog.Errorf("%s: %s", addr, err)
		return
	}
	s.forward(envelope{kind: promote, conn: conn, datagram: Datagram{Addr: addr}})
}
