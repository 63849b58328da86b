package server

import (
	"context"
	"iter"
	gonet "net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/net/trace"
	"golang.org/x/sync/errgroup"

	"badc0de.net/pkg/go-raknet/session"
)

var (
	ErrNotStarted     = errors.New("listener not started")
	ErrAlreadyStarted = errors.New("listener already started")
)

// Listener accepts RakNet clients on one UDP socket.
//
// Three goroutines serve it once started: the socket reader, the socket
// writer and the registry, which owns the connection table.
type Listener struct {
	conn    *gonet.UDPConn
	state   *State
	table   *session.Table
	metrics *metrics
	events  trace.EventLog

	envelopes chan envelope
	stream    *Stream
	sock      *socket
	reg       *registry

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	group   *errgroup.Group
}

// Bind opens the UDP socket at address. No datagram is read before Start.
func Bind(address string, cfg *Config) (*Listener, error) {
	c := cfg.withDefaults()

	lc := gonet.ListenConfig{Control: listenControl(c.ReuseAddr)}
	pc, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "binding %s", address)
	}
	conn := pc.(*gonet.UDPConn)
	local := conn.LocalAddr().String()

	guid := c.GUID
	if guid == 0 {
		guid = session.NewGUID()
	}
	d := DefaultDescriptor()
	if c.Descriptor != nil {
		d = *c.Descriptor
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		conn:      conn,
		state:     newState(guid, d),
		table:     session.NewTable(),
		metrics:   newMetrics(c.Registerer, local),
		events:    trace.NewEventLog("raknet.Listener", local),
		envelopes: make(chan envelope, c.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	inboundCh := make(chan Datagram, c.QueueSize)
	outboundCh := make(chan Datagram, c.QueueSize)
	l.stream = &Stream{ctx: ctx, inbound: inboundCh, envelopes: l.envelopes}
	l.sock = &socket{
		conn:      conn,
		state:     l.state,
		table:     l.table,
		cfg:       c,
		metrics:   l.metrics,
		events:    l.events,
		envelopes: l.envelopes,
		outbound:  outboundCh,
	}
	l.reg = &registry{
		state:     l.state,
		table:     l.table,
		cfg:       c,
		metrics:   l.metrics,
		events:    l.events,
		envelopes: l.envelopes,
		outbound:  outboundCh,
		inbound:   inboundCh,
	}

	glog.Infof("raknet listener bound to %s, guid %d", local, guid)
	l.events.Printf("bound, guid %d", guid)
	return l, nil
}

// Start launches the listener's goroutines.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true
	l.state.setEnabled(true)

	g, ctx := errgroup.WithContext(l.ctx)
	g.Go(func() error { return l.sock.listen(ctx) })
	g.Go(l.sock.send)
	g.Go(func() error { return l.reg.run(ctx) })
	l.group = g

	l.events.Printf("started")
	return nil
}

// Close stops the goroutines and releases the socket. Datagrams the
// application queued before Close are still sent.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	l.state.setEnabled(false)
	l.cancel()

	var err error
	if l.started {
		l.conn.SetReadDeadline(time.Now())
		err = l.group.Wait()
	}
	if cerr := l.conn.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "closing socket")
	}

	l.metrics.unregister()
	glog.Infof("raknet listener on %s closed", l.conn.LocalAddr())
	l.events.Printf("closed")
	l.events.Finish()
	return err
}

func (l *Listener) LocalAddr() *gonet.UDPAddr {
	return l.conn.LocalAddr().(*gonet.UDPAddr)
}

func (l *Listener) GUID() uint64 {
	return l.state.GUID()
}

func (l *Listener) Stream() *Stream {
	return l.stream
}

// Incoming is a shorthand for Stream().Incoming.
func (l *Listener) Incoming(ctx context.Context) iter.Seq2[*gonet.UDPAddr, []byte] {
	return l.stream.Incoming(ctx)
}

func (l *Listener) Descriptor() Descriptor {
	return l.state.Descriptor()
}

// SetDescriptor changes what subsequent pongs advertise.
func (l *Listener) SetDescriptor(d Descriptor) {
	l.state.SetDescriptor(d)
}

// Connections returns a snapshot of the connection table.
func (l *Listener) Connections() []session.Connection {
	return l.table.Snapshot()
}

// Evict asks the registry to drop addr and notify the peer.
func (l *Listener) Evict(ctx context.Context, addr *gonet.UDPAddr) error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if l.ctx.Err() != nil {
		return ErrClosed
	}

	select {
	case l.envelopes <- envelope{kind: evict, datagram: Datagram{Addr: addr}}:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
