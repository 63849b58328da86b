package server

import (
	"context"
	gonet "net"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/trace"

	"badc0de.net/pkg/go-raknet/protocol"
	"badc0de.net/pkg/go-raknet/session"
)

// registry is the only writer of the connection table. It advances the
// handshake, forwards payloads of connected peers to the stream and hands
// replies to the socket writer.
type registry struct {
	state   *State
	table   *session.Table
	cfg     Config
	metrics *metrics
	events  trace.EventLog

	envelopes <-chan envelope
	// outbound is closed when run returns.
	outbound chan<- Datagram
	inbound  chan<- Datagram
}

func (r *registry) run(ctx context.Context) error {
	defer r.shutdown()

	var idle <-chan time.Time
	if r.cfg.IdleTimeout > 0 {
		ticker := time.NewTicker(r.cfg.IdleTimeout / 2)
		defer ticker.Stop()
		idle = ticker.C
	}

	for r.state.Enabled() {
		select {
		case <-ctx.Done():
			return nil
		case env := <-r.envelopes:
			r.handle(env)
		case now := <-idle:
			r.evictIdle(now)
		}
	}
	return nil
}

// shutdown flushes application sends that were queued before teardown and
// then releases the socket writer.
func (r *registry) shutdown() {
	for {
		select {
		case env := <-r.envelopes:
			if env.kind == outbound {
				r.outbound <- env.datagram
			}
		default:
			close(r.outbound)
			return
		}
	}
}

func (r *registry) handle(env envelope) {
	switch env.kind {
	case promote:
		r.handlePromote(env.conn)
	case inbound:
		r.handleInbound(env.datagram)
	case outbound:
		r.outbound <- env.datagram
	case evict:
		r.evict(env.datagram.Addr, "evicted")
	}
}

func (r *registry) reply(addr *gonet.UDPAddr, p protocol.Packet) {
	b, err := protocol.Encode(p)
	if err != nil {
		glog.Errorf("encoding %s for %s: %s", p.ID(), addr, err)
		return
	}
	r.outbound <- Datagram{Addr: addr, Payload: b}
}

func (r *registry) decode(p protocol.Packet, d Datagram) bool {
	if err := protocol.Decode(p, d.Payload[1:]); err != nil {
		r.metrics.decodeErrors.Inc()
		glog.Warningf("%s: %s", d.Addr, err)
		return false
	}
	return true
}

func (r *registry) updateGauge() {
	r.metrics.connections.Set(float64(r.table.Len()))
}

// handlePromote stores a connection that passed OpenConnectionRequest1. A
// client still probing its MTU keeps its entry; any other existing entry
// for the address is replaced by the fresh one.
func (r *registry) handlePromote(c *session.Connection) {
	found, err := r.table.Mutate(c.Addr, func(old *session.Connection) error {
		return old.Reopen(c.MTU)
	})
	switch {
	case found && err == nil:
		glog.V(2).Infof("%s: repeated open connection request, mtu %d", c.Addr, c.MTU)
	case found:
		glog.Infof("%s: restarting handshake", c.Addr)
		r.table.Put(c)
	default:
		r.table.Put(c)
	}
	r.updateGauge()

	r.reply(c.Addr, &protocol.OpenConnectionReply1{
		ServerGUID: r.state.GUID(),
		Security:   false,
		MTU:        c.MTU,
	})
}

func (r *registry) handleInbound(d Datagram) {
	conn, ok := r.table.Lookup(d.Addr)
	if !ok {
		glog.V(2).Infof("%s: dropping 0x%02x from peer without connection", d.Addr, d.Payload[0])
		return
	}
	if !r.dispatch(conn, d) {
		return
	}
	// Only datagrams that were accepted count as activity.
	r.table.Mutate(d.Addr, func(c *session.Connection) error {
		c.Touch(time.Now())
		return nil
	})
}

// dispatch reports whether d was accepted.
func (r *registry) dispatch(conn session.Connection, d Datagram) bool {
	id := protocol.ParseID(d.Payload[0])
	switch {
	case id == protocol.IDOpenConnectionRequest2:
		return r.handleOpenConnectionRequest2(d)
	case id == protocol.IDConnectionRequest:
		return r.handleConnectionRequest(conn, d)
	case id == protocol.IDNewIncomingConnection:
		return r.handleNewIncomingConnection(d)
	case id == protocol.IDDisconnect:
		r.evict(d.Addr, "disconnected")
		return false
	case id == protocol.IDConnectedPing:
		return r.handleConnectedPing(conn, d)
	case id == protocol.IDACK || id == protocol.IDNACK || protocol.IsFrameSet(d.Payload[0]):
		if !conn.Negotiated {
			glog.V(2).Infof("%s: reliability datagram before negotiation", d.Addr)
			return false
		}
		for _, out := range r.cfg.Reliability.HandleDatagram(conn, id, d.Payload) {
			r.outbound <- out
		}
		return true
	default:
		if conn.State != session.FullyConnected {
			glog.V(2).Infof("%s: dropping %s while %s", d.Addr, id, conn.State)
			return false
		}
		r.deliver(d)
		return true
	}
}

// deliver passes a payload to the application. If the application is not
// keeping up, the payload is dropped.
func (r *registry) deliver(d Datagram) {
	select {
	case r.inbound <- d:
	default:
		r.metrics.dropped.WithLabelValues("stream").Inc()
		glog.V(2).Infof("%s: stream queue full, dropping %d bytes", d.Addr, len(d.Payload))
	}
}

func (r *registry) handleOpenConnectionRequest2(d Datagram) bool {
	req := &protocol.OpenConnectionRequest2{}
	if !r.decode(req, d) {
		return false
	}
	if req.Magic != protocol.Magic {
		glog.V(2).Infof("%s: open connection request 2 with bad magic", d.Addr)
		return false
	}

	var mtu uint16
	_, err := r.table.Mutate(d.Addr, func(c *session.Connection) error {
		if err := c.Negotiate(req.MTU, r.cfg.MaxMTU, req.ClientGUID); err != nil {
			return err
		}
		mtu = c.MTU
		return nil
	})
	if err != nil {
		glog.Warningf("%s: %s", d.Addr, err)
		return false
	}

	r.reply(d.Addr, &protocol.OpenConnectionReply2{
		ServerGUID:    r.state.GUID(),
		ClientAddress: d.Addr,
		MTU:           mtu,
		Encryption:    false,
	})
	return true
}

func (r *registry) handleConnectionRequest(conn session.Connection, d Datagram) bool {
	req := &protocol.ConnectionRequest{}
	if !r.decode(req, d) {
		return false
	}
	if !conn.Negotiated {
		glog.Warningf("%s: connection request before open connection request 2", d.Addr)
		return false
	}
	if req.ClientGUID != conn.ClientGUID {
		glog.Warningf("%s: connection request from guid %d, negotiated with %d", d.Addr, req.ClientGUID, conn.ClientGUID)
		return false
	}

	r.reply(d.Addr, &protocol.ConnectionRequestAccepted{
		ClientAddress: d.Addr,
		SystemIndex:   0,
		RequestTime:   req.Time,
		Time:          r.state.Uptime(),
	})
	return true
}

func (r *registry) handleNewIncomingConnection(d Datagram) bool {
	req := &protocol.NewIncomingConnection{}
	if !r.decode(req, d) {
		return false
	}
	_, err := r.table.Mutate(d.Addr, func(c *session.Connection) error {
		return c.Confirm()
	})
	if err != nil {
		glog.Warningf("%s: %s", d.Addr, err)
		return false
	}
	r.metrics.handshakes.Inc()
	r.events.Printf("%s fully connected (sees server as %s)", d.Addr, req.ServerAddress)
	glog.Infof("%s: fully connected", d.Addr)
	return true
}

func (r *registry) handleConnectedPing(conn session.Connection, d Datagram) bool {
	req := &protocol.ConnectedPing{}
	if !r.decode(req, d) {
		return false
	}
	if conn.State != session.FullyConnected {
		return false
	}
	r.reply(d.Addr, &protocol.ConnectedPong{
		PingTime: req.Time,
		PongTime: r.state.Uptime(),
	})
	return true
}

// evict removes addr from the table. Peers removed by the server rather
// than by their own Disconnect are told about it.
func (r *registry) evict(addr *gonet.UDPAddr, reason string) {
	c, ok := r.table.Remove(addr)
	if !ok {
		return
	}
	c.Close()
	r.updateGauge()
	r.events.Printf("%s %s", addr, reason)
	glog.Infof("%s: %s", addr, reason)

	if reason != "disconnected" {
		r.reply(addr, &protocol.Disconnect{})
	}
}

func (r *registry) evictIdle(now time.Time) {
	for _, addr := range r.table.Expired(now.Add(-r.cfg.IdleTimeout)) {
		r.evict(addr, "timed out")
	}
}
