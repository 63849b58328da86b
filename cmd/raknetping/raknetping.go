// raknetping sends unconnected pings to a RakNet server and prints what it
// advertises.
package main

import (
	"flag"
	"net"
	"strings"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/bradfitz/iter"
	"github.com/golang/glog"
	"github.com/gookit/color"

	"badc0de.net/pkg/go-raknet/protocol"
	"badc0de.net/pkg/go-raknet/session"
)

var (
	serverAddress = flag.String("server", "127.0.0.1:19132", "RakNet server to ping")
	count         = flag.Int("count", 3, "number of pings")
	timeout       = flag.Duration("timeout", time.Second, "how long to wait for each pong")
)

func main() {
	flagutil.Parse()

	raddr, err := net.ResolveUDPAddr("udp", *serverAddress)
	if err != nil {
		glog.Exitln(err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		glog.Exitln(err)
	}
	defer conn.Close()

	guid := int64(session.NewGUID())
	start := time.Now()
	buf := make([]byte, 2048)
	lost := 0
	for i := range iter.N(*count) {
		sent := time.Since(start).Milliseconds()
		b, err := protocol.Encode(&protocol.UnconnectedPing{Time: sent, ClientGUID: guid})
		if err != nil {
			glog.Exitln(err)
		}
		if _, err := conn.Write(b); err != nil {
			glog.Exitln(err)
		}

		conn.SetReadDeadline(time.Now().Add(*timeout))
		n, err := conn.Read(buf)
		if err != nil {
			color.Red.Printf("#%d: no pong: %s\n", i, err)
			lost++
			continue
		}
		p, err := protocol.Parse(buf[:n])
		if err != nil {
			color.Red.Printf("#%d: bad reply: %s\n", i, err)
			lost++
			continue
		}
		pong, ok := p.(*protocol.UnconnectedPong)
		if !ok {
			color.Red.Printf("#%d: unexpected %s\n", i, p.ID())
			lost++
			continue
		}

		rtt := time.Since(start).Milliseconds() - pong.Time
		color.Green.Printf("#%d: pong from %d in %dms\n", i, pong.ServerGUID, rtt)
		color.Cyan.Println(strings.Split(strings.TrimSuffix(pong.MOTD, ";"), ";"))
	}
	if lost > 0 {
		glog.Warningf("%d of %d pings lost", lost, *count)
	}
	glog.Flush()
}
