// Package netfabric implements the connection fabric (C4): TCP/TLS
// connect helpers, a queued async output stream, and the back-pressure
// circular buffer every protocol plugin writes through. Style grounded on
// the teacher's tls.go (self-signed cert helper) and client.go (circuit
// breaker / back-pressure bookkeeping) generalized from "one room's
// websocket fan-out" to "one account's outbound byte stream".
package netfabric

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"imcore/internal/eventloop"
	"imcore/internal/resolver"
)

// Security is the TLS policy for one account's connection, named directly
// after spec.md §4.4's "opportunistic, required, or disabled".
type Security int

const (
	SecurityDisabled Security = iota
	SecurityOpportunistic
	SecurityRequired
)

// ConnectFunc receives the established connection or a connect error.
type ConnectFunc func(conn net.Conn, err error)

// Connect resolves host:port via res then dials a plain TCP connection,
// delivering the result on loop's thread. It never blocks the calling
// goroutine's caller past the initial call.
func Connect(loop *eventloop.Loop, res *resolver.Resolver, host string, port int, timeout time.Duration, cb ConnectFunc) *resolver.Token {
	return res.Resolve(host, port, func(addrs []resolver.Addr, err error) {
		if err != nil {
			cb(nil, fmt.Errorf("resolve %s: %w", host, err))
			return
		}
		if len(addrs) == 0 {
			cb(nil, fmt.Errorf("resolve %s: no addresses", host))
			return
		}
		target := net.JoinHostPort(addrs[0].IP.String(), fmt.Sprintf("%d", port))
		go func() {
			d := net.Dialer{Timeout: timeout}
			conn, dialErr := d.DialContext(context.Background(), "tcp", target)
			loop.Post(func() { cb(conn, dialErr) })
		}()
	})
}

// SSLConnect wraps Connect with a TLS handshake, matching spec.md's
// ssl_connect(account, host, port, cb, err_cb) shape: cb fires only after
// a successful handshake, errCb fires for either the TCP connect or the
// handshake itself.
func SSLConnect(loop *eventloop.Loop, res *resolver.Resolver, host string, port int, timeout time.Duration, cfg *tls.Config, cb ConnectFunc, errCb func(error)) *resolver.Token {
	return Connect(loop, res, host, port, timeout, func(conn net.Conn, err error) {
		if err != nil {
			errCb(err)
			return
		}
		tlsConn := tls.Client(conn, cfg)
		go func() {
			hsErr := tlsConn.HandshakeContext(context.Background())
			loop.Post(func() {
				if hsErr != nil {
					_ = conn.Close()
					errCb(hsErr)
					return
				}
				cb(tlsConn, nil)
			})
		}()
	})
}

// GracefulClose flushes a QueuedOutputStream's remaining writes, then
// closes the underlying connection.
func GracefulClose(q *QueuedOutputStream) error {
	q.Flush()
	return q.conn.Close()
}
