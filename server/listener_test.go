package server

import (
	"context"
	gonet "net"
	"os"
	"testing"
	"time"

	"badc0de.net/pkg/flagutil/v1"

	"badc0de.net/pkg/go-raknet/protocol"
	"badc0de.net/pkg/go-raknet/session"
	"badc0de.net/pkg/go-raknet/ttesting"
)

func TestMain(m *testing.M) {
	// make -args -v=2 -logtostderr work. Parsing has to wait until testing
	// has registered its own flags.
	flagutil.Parse()
	os.Exit(m.Run())
}

const testGUID = 42

func startListener(t *testing.T, cfg *Config) *Listener {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.GUID = testGUID
	cfg.IdleTimeout = -1
	l, err := Bind("127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("bind: %s", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("start: %s", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

type testClient struct {
	t      *testing.T
	conn   *gonet.UDPConn
	server *gonet.UDPAddr
}

func dial(t *testing.T, l *Listener) *testClient {
	t.Helper()
	conn, err := gonet.ListenUDP("udp", &gonet.UDPAddr{IP: gonet.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("client socket: %s", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, server: l.LocalAddr()}
}

func (c *testClient) addr() *gonet.UDPAddr {
	return c.conn.LocalAddr().(*gonet.UDPAddr)
}

func (c *testClient) sendRaw(b []byte) {
	c.t.Helper()
	if _, err := c.conn.WriteToUDP(b, c.server); err != nil {
		c.t.Fatalf("client write: %s", err)
	}
}

func (c *testClient) send(p protocol.Packet) {
	c.t.Helper()
	b, err := protocol.Encode(p)
	if err != nil {
		c.t.Fatalf("encode %s: %s", p.ID(), err)
	}
	c.sendRaw(b)
}

// readRaw returns nil if nothing arrives within d.
func (c *testClient) readRaw(d time.Duration) []byte {
	c.t.Helper()
	buf := make([]byte, maxDatagramSize)
	c.conn.SetReadDeadline(time.Now().Add(d))
	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(gonet.Error); ok && ne.Timeout() {
			return nil
		}
		c.t.Fatalf("client read: %s", err)
	}
	return buf[:n]
}

func (c *testClient) receive() protocol.Packet {
	c.t.Helper()
	b := c.readRaw(2 * time.Second)
	if b == nil {
		c.t.Fatalf("no reply from server")
	}
	p, err := protocol.Parse(b)
	if err != nil {
		c.t.Fatalf("parse reply % x: %s", b, err)
	}
	return p
}

func (c *testClient) expectSilence() {
	c.t.Helper()
	if b := c.readRaw(200 * time.Millisecond); b != nil {
		c.t.Fatalf("unexpected reply % x", b)
	}
}

// handshake walks the client through to the fully connected state.
func (c *testClient) handshake(l *Listener, clientGUID uint64) {
	c.t.Helper()
	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	if _, ok := c.receive().(*protocol.OpenConnectionReply1); !ok {
		c.t.Fatalf("want OpenConnectionReply1")
	}
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: clientGUID})
	if _, ok := c.receive().(*protocol.OpenConnectionReply2); !ok {
		c.t.Fatalf("want OpenConnectionReply2")
	}
	c.send(&protocol.ConnectionRequest{ClientGUID: clientGUID, Time: 5})
	if _, ok := c.receive().(*protocol.ConnectionRequestAccepted); !ok {
		c.t.Fatalf("want ConnectionRequestAccepted")
	}
	c.send(&protocol.NewIncomingConnection{ServerAddress: c.server, ClientAddress: c.addr(), RequestTime: 6, Time: 7})
	waitForState(c.t, l, c.addr(), session.FullyConnected)
}

func waitForState(t *testing.T, l *Listener, addr *gonet.UDPAddr, want session.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range l.Connections() {
			if c.Addr.String() == addr.String() && c.State == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s never reached %s; table: %v", addr, want, l.Connections())
}

func TestUnconnectedPing(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.UnconnectedPing{Time: 1234, ClientGUID: 7})
	pong, ok := c.receive().(*protocol.UnconnectedPong)
	if !ok {
		t.Fatalf("want UnconnectedPong")
	}
	ttesting.AssertEqualInt(t, "time", int(pong.Time), 1234)
	ttesting.AssertEqualInt(t, "server guid", int(pong.ServerGUID), testGUID)
	ttesting.AssertEqualString(t, "motd", pong.MOTD, DefaultDescriptor().Format(testGUID, 0, l.LocalAddr().Port))
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)
}

func TestOpenPingWhenFull(t *testing.T) {
	d := DefaultDescriptor()
	d.MaxPlayers = 0
	l := startListener(t, &Config{Descriptor: &d})
	c := dial(t, l)

	c.send(&protocol.UnconnectedPing{Time: 1, OpenConnections: true})
	c.expectSilence()

	c.send(&protocol.UnconnectedPing{Time: 2})
	if _, ok := c.receive().(*protocol.UnconnectedPong); !ok {
		t.Fatalf("want UnconnectedPong")
	}
}

func TestSetDescriptor(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	d := l.Descriptor()
	d.MOTD = "renamed"
	l.SetDescriptor(d)

	c.send(&protocol.UnconnectedPing{Time: 1})
	pong := c.receive().(*protocol.UnconnectedPong)
	ttesting.AssertEqualString(t, "motd", pong.MOTD, d.Format(testGUID, 0, l.LocalAddr().Port))
}

func TestHandshake(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	r1, ok := c.receive().(*protocol.OpenConnectionReply1)
	if !ok {
		t.Fatalf("want OpenConnectionReply1")
	}
	ttesting.AssertEqualUint64(t, "reply1 guid", r1.ServerGUID, testGUID)
	ttesting.AssertEqualBool(t, "security", r1.Security, false)
	ttesting.AssertEqualInt(t, "reply1 mtu", int(r1.MTU), 1400)
	waitForState(t, l, c.addr(), session.Connected)

	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1300, ClientGUID: 99})
	r2, ok := c.receive().(*protocol.OpenConnectionReply2)
	if !ok {
		t.Fatalf("want OpenConnectionReply2")
	}
	ttesting.AssertEqualUint64(t, "reply2 guid", r2.ServerGUID, testGUID)
	ttesting.AssertEqualString(t, "client address", r2.ClientAddress.String(), c.addr().String())
	ttesting.AssertEqualInt(t, "reply2 mtu", int(r2.MTU), 1300)
	ttesting.AssertEqualBool(t, "encryption", r2.Encryption, false)

	c.send(&protocol.ConnectionRequest{ClientGUID: 99, Time: 5})
	acc, ok := c.receive().(*protocol.ConnectionRequestAccepted)
	if !ok {
		t.Fatalf("want ConnectionRequestAccepted")
	}
	ttesting.AssertEqualInt(t, "request time", int(acc.RequestTime), 5)
	ttesting.AssertEqualInt(t, "system index", int(acc.SystemIndex), 0)
	ttesting.AssertEqualString(t, "accepted address", acc.ClientAddress.String(), c.addr().String())

	c.send(&protocol.NewIncomingConnection{ServerAddress: c.server, ClientAddress: c.addr(), RequestTime: 6, Time: 7})
	waitForState(t, l, c.addr(), session.FullyConnected)

	conns := l.Connections()
	ttesting.AssertEqualInt(t, "connections", len(conns), 1)
	ttesting.AssertEqualUint64(t, "client guid", conns[0].ClientGUID, 99)
	ttesting.AssertEqualInt(t, "mtu", int(conns[0].MTU), 1300)
}

func TestConnectionRequestWithWrongGUID(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	c.receive()
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: 99})
	c.receive()

	c.send(&protocol.ConnectionRequest{ClientGUID: 100, Time: 5})
	c.expectSilence()
}

func TestIncompatibleProtocol(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion - 1, MTU: 1400})
	rej, ok := c.receive().(*protocol.IncompatibleProtocol)
	if !ok {
		t.Fatalf("want IncompatibleProtocol")
	}
	ttesting.AssertEqualInt(t, "protocol", int(rej.Protocol), int(protocol.ProtocolVersion))
	ttesting.AssertEqualUint64(t, "server guid", rej.ServerGUID, testGUID)

	// The ping round trip passes through the same reader, so a table entry
	// would already be visible.
	c.send(&protocol.UnconnectedPing{Time: 1})
	c.receive()
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)
}

func TestMalformedRequestIgnored(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.sendRaw([]byte{byte(protocol.IDOpenConnectionRequest1), 0x00, 0xff, 0xff})
	c.expectSilence()
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)

	c.send(&protocol.UnconnectedPing{Time: 1})
	if _, ok := c.receive().(*protocol.UnconnectedPong); !ok {
		t.Fatalf("want UnconnectedPong after malformed request")
	}
}

func TestPayloadsBothWays(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	c.sendRaw([]byte{byte(protocol.IDGamePacket), 1, 2, 3})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := l.Stream().Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %s", err)
	}
	ttesting.AssertEqualString(t, "from", d.Addr.String(), c.addr().String())
	ttesting.AssertEqualBytes(t, "payload", d.Payload, []byte{0xfe, 1, 2, 3})

	if err := l.Stream().WriteTo(ctx, []byte{0xfe, 9}, c.addr()); err != nil {
		t.Fatalf("write: %s", err)
	}
	ttesting.AssertEqualBytes(t, "sent", c.readRaw(2*time.Second), []byte{0xfe, 9})

	if err := l.Stream().SendTo(ctx, []byte{0xfe, 10}, c.addr().String()); err != nil {
		t.Fatalf("send: %s", err)
	}
	ttesting.AssertEqualBytes(t, "sent by name", c.readRaw(2*time.Second), []byte{0xfe, 10})
}

func TestIncomingIterator(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	for i := byte(0); i < 3; i++ {
		c.sendRaw([]byte{0xfe, i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got []byte
	for _, payload := range l.Incoming(ctx) {
		got = append(got, payload[1])
		if len(got) == 3 {
			break
		}
	}
	ttesting.AssertEqualBytes(t, "payload sequence", got, []byte{0, 1, 2})
}

func TestReceiveFromShortBuffer(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	c.sendRaw([]byte{0xfe, 1, 2, 3, 4})
	buf := make([]byte, 2)
	n, addr, err := l.Stream().ReceiveFrom(buf)
	if err == nil {
		t.Fatalf("want io.ErrShortBuffer")
	}
	ttesting.AssertEqualInt(t, "copied", n, 2)
	ttesting.AssertEqualString(t, "from", addr.String(), c.addr().String())
}

func TestPayloadFromUnknownPeerDropped(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.sendRaw([]byte{0xfe, 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if d, err := l.Stream().Receive(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v, %v; want deadline exceeded", d, err)
	}
}

func TestConnectedPing(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	c.send(&protocol.ConnectedPing{Time: 77})
	pong, ok := c.receive().(*protocol.ConnectedPong)
	if !ok {
		t.Fatalf("want ConnectedPong")
	}
	ttesting.AssertEqualInt(t, "ping time", int(pong.PingTime), 77)
}

func TestDisconnect(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	c.send(&protocol.Disconnect{})
	c.expectSilence()
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)
}

func TestEvict(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	if err := l.Evict(context.Background(), c.addr()); err != nil {
		t.Fatalf("evict: %s", err)
	}
	if _, ok := c.receive().(*protocol.Disconnect); !ok {
		t.Fatalf("want Disconnect")
	}
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)
}

func TestIdleEviction(t *testing.T) {
	l, err := Bind("127.0.0.1:0", &Config{GUID: testGUID, IdleTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("bind: %s", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("start: %s", err)
	}
	defer l.Close()
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	c.receive()
	if _, ok := c.receive().(*protocol.Disconnect); !ok {
		t.Fatalf("want Disconnect after idling")
	}
	ttesting.AssertEqualInt(t, "connections", len(l.Connections()), 0)
}

func TestNoDeliveryAfterClose(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)
	c.handshake(l, 99)

	c.sendRaw([]byte{0xfe, 1})
	time.Sleep(100 * time.Millisecond)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}

	if _, err := l.Stream().Receive(context.Background()); err != ErrClosed {
		t.Errorf("receive: got %v; want ErrClosed", err)
	}
	if err := l.Stream().WriteTo(context.Background(), []byte{0xfe}, c.addr()); err != ErrClosed {
		t.Errorf("write: got %v; want ErrClosed", err)
	}
	if err := l.Start(); err != ErrClosed {
		t.Errorf("start: got %v; want ErrClosed", err)
	}
}

func TestCloseFlushesQueuedSends(t *testing.T) {
	l, err := Bind("127.0.0.1:0", &Config{GUID: testGUID})
	if err != nil {
		t.Fatalf("bind: %s", err)
	}
	c := dial(t, l)

	ctx := context.Background()
	for i := byte(0); i < 3; i++ {
		if err := l.Stream().WriteTo(ctx, []byte{0xfe, i}, c.addr()); err != nil {
			t.Fatalf("write: %s", err)
		}
	}
	if err := l.Start(); err != nil {
		t.Fatalf("start: %s", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}

	for i := byte(0); i < 3; i++ {
		ttesting.AssertEqualBytes(t, "flushed", c.readRaw(2*time.Second), []byte{0xfe, i})
	}
}

func TestCloseWithoutStart(t *testing.T) {
	l, err := Bind("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("bind: %s", err)
	}
	if err := l.Evict(context.Background(), l.LocalAddr()); err != ErrNotStarted {
		t.Errorf("evict: got %v; want ErrNotStarted", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
}

func lookup(t *testing.T, l *Listener, addr *gonet.UDPAddr) session.Connection {
	t.Helper()
	for _, c := range l.Connections() {
		if c.Addr.String() == addr.String() {
			return c
		}
	}
	t.Fatalf("%s not in table", addr)
	return session.Connection{}
}

func TestMalformedDatagramLeavesEntryUntouched(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	c.receive()
	waitForState(t, l, c.addr(), session.Connected)
	before := lookup(t, l, c.addr())

	time.Sleep(20 * time.Millisecond)
	c.sendRaw([]byte{byte(protocol.IDOpenConnectionRequest2), 0x00})
	c.expectSilence()

	after := lookup(t, l, c.addr())
	ttesting.AssertEqualBool(t, "last seen unchanged", after.LastSeen.Equal(before.LastSeen), true)
	ttesting.AssertEqualBool(t, "not negotiated", after.Negotiated, false)
	ttesting.AssertEqualString(t, "state", after.State.String(), before.State.String())

	// A well formed request still counts as activity.
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: 99})
	c.receive()
	deadline := time.Now().Add(2 * time.Second)
	for !lookup(t, l, c.addr()).LastSeen.After(before.LastSeen) {
		if time.Now().After(deadline) {
			t.Fatalf("last seen never advanced past %s", before.LastSeen)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenConnectionRequest2BelowMinimumMTU(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	c.receive()
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 0, ClientGUID: 99})
	c.expectSilence()

	conn := lookup(t, l, c.addr())
	ttesting.AssertEqualBool(t, "not negotiated", conn.Negotiated, false)
	ttesting.AssertEqualInt(t, "mtu", int(conn.MTU), 1400)
}

func TestRepeatedOpenConnectionRequest2KeepsClientGUID(t *testing.T) {
	l := startListener(t, nil)
	c := dial(t, l)

	c.send(&protocol.OpenConnectionRequest1{Protocol: protocol.ProtocolVersion, MTU: 1400})
	c.receive()
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: 99})
	c.receive()

	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: 100})
	c.expectSilence()
	ttesting.AssertEqualUint64(t, "client guid", lookup(t, l, c.addr()).ClientGUID, 99)

	// A retransmission under the original GUID is answered again.
	c.send(&protocol.OpenConnectionRequest2{ServerAddress: c.server, MTU: 1400, ClientGUID: 99})
	if _, ok := c.receive().(*protocol.OpenConnectionReply2); !ok {
		t.Fatalf("want OpenConnectionReply2")
	}
	c.send(&protocol.ConnectionRequest{ClientGUID: 99, Time: 5})
	if _, ok := c.receive().(*protocol.ConnectionRequestAccepted); !ok {
		t.Fatalf("want ConnectionRequestAccepted")
	}
}
