//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns a net.ListenConfig control function applying the
// socket options.
func listenControl(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	if !reuseAddr {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
