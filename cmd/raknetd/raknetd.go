// raknetd accepts RakNet clients and logs, or echoes, what they send once
// connected.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"badc0de.net/pkg/flagutil/v1"
	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"badc0de.net/pkg/go-raknet/datafiles"
	"badc0de.net/pkg/go-raknet/paths"
	"badc0de.net/pkg/go-raknet/server"
	"badc0de.net/pkg/go-raknet/web"
)

var (
	listenAddress = flag.String("listen_address", ":19132", "UDP address the RakNet listener binds to")
	motd          = flag.String("motd", "", "overrides the descriptor's motd")
	maxPlayers    = flag.Int("max_players", 0, "overrides the descriptor's max_players")
	idleTimeout   = flag.Duration("idle_timeout", 10*time.Second, "evict peers silent for this long; negative disables")
	reuseAddr     = flag.Bool("reuse_addr", false, "set SO_REUSEADDR on the listening socket")
	echo          = flag.Bool("echo", false, "send every payload back to its sender")

	debugWebServer = flag.String("debug_web_server_listen_address", "", "where the debug server will listen")

	// descriptorPath names a YAML file with the descriptor advertised in
	// pongs. It defaults to raknetd.yaml if one is found.
	descriptorPath string
)

func loadDescriptor() (server.Descriptor, error) {
	var r io.Reader = bytes.NewReader(datafiles.Descriptor)
	if descriptorPath != "" {
		f, err := os.Open(descriptorPath)
		if err != nil {
			return server.Descriptor{}, err
		}
		defer f.Close()
		r = f
	}
	d, err := server.LoadDescriptor(r)
	if err != nil {
		return d, err
	}
	if *motd != "" {
		d.MOTD = *motd
	}
	if *maxPlayers > 0 {
		d.MaxPlayers = *maxPlayers
	}
	return d, nil
}

func debugRouter(l *server.Listener) http.Handler {
	r := mux.NewRouter()
	web.NewHandler(l).RegisterRoutes(r)
	// x/net/trace registers /debug/requests and /debug/events here.
	r.PathPrefix("/debug/").Handler(http.DefaultServeMux)
	return handlers.LoggingHandler(os.Stderr, r)
}

func main() {
	paths.SetupFilePathFlag("raknetd.yaml", "descriptor_path", &descriptorPath)
	flagutil.Parse()
	glog.Infoln("starting raknetd")

	d, err := loadDescriptor()
	if err != nil {
		glog.Exitf("loading descriptor: %s", err)
	}

	l, err := server.Bind(*listenAddress, &server.Config{
		Descriptor:  &d,
		IdleTimeout: *idleTimeout,
		ReuseAddr:   *reuseAddr,
		Registerer:  prometheus.DefaultRegisterer,
	})
	if err != nil {
		glog.Exitln(err)
	}
	if err := l.Start(); err != nil {
		glog.Exitln(err)
	}
	glog.Infof("raknetd listening on %s", l.LocalAddr())

	if *debugWebServer != "" {
		go func() {
			glog.Errorln(http.ListenAndServe(*debugWebServer, debugRouter(l)))
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for addr, payload := range l.Incoming(ctx) {
		glog.V(1).Infof("%s: %d bytes, id 0x%02x", addr, len(payload), payload[0])
		if !*echo {
			continue
		}
		if err := l.Stream().WriteTo(ctx, payload, addr); err != nil {
			glog.Errorf("echoing to %s: %s", addr, err)
		}
	}

	glog.Infoln("shutting down")
	if err := l.Close(); err != nil {
		glog.Errorln(err)
	}
	glog.Flush()
}
