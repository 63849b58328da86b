//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)

package server

import (
	"syscall"

	"github.com/golang/glog"
)

func listenControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	if reuseAddr {
		glog.Warningln("SO_REUSEADDR is not supported on this platform; ignoring")
	}
	return nil
}
