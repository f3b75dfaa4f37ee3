package netfabric

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"imcore/internal/xfer"
)

// webtransportStream must satisfy internal/xfer.Transport so it can be
// handed straight to (*xfer.Xfer).Start.
var _ xfer.Transport = (*webtransportStream)(nil)

func TestDialWebTransportTransportFailsFastOnUnreachableAddr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialWebTransportTransport(ctx, "127.0.0.1:1", nil, true)
	if err == nil {
		t.Fatal("expected dial to an unreachable port to fail")
	}
}

func TestDialWebTransportTransportRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DialWebTransportTransport(ctx, "127.0.0.1:65535", &tls.Config{}, false)
	if err == nil {
		t.Fatal("expected dial on a cancelled context to fail")
	}
}
