package netfabric

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// WebTransportDialTimeout bounds the WebTransport handshake + control
// stream open, mirroring the teacher's own connectTimeout for its
// audio transport.
const WebTransportDialTimeout = 10 * time.Second

// webtransportStream wraps a *webtransport.Stream plus the session it
// belongs to, so Close tears down the whole session rather than leaking
// it once the one stream a file transfer needs is done with.
type webtransportStream struct {
	stream  webtransport.Stream
	session *webtransport.Session
}

// Read implements internal/xfer.Transport.
func (w *webtransportStream) Read(p []byte) (int, error) { return w.stream.Read(p) }

// Write implements internal/xfer.Transport.
func (w *webtransportStream) Write(p []byte) (int, error) { return w.stream.Write(p) }

// Close closes the stream and the underlying session. Both ends of a
// file transfer open their own short-lived session, so there is no
// multiplexing to preserve past this point.
func (w *webtransportStream) Close() error {
	err := w.stream.Close()
	w.session.CloseWithError(0, "xfer done")
	return err
}

// DialWebTransportTransport dials addr (host:port, no scheme) over
// WebTransport and opens one reliable bidirectional stream, returning it
// as an internal/xfer.Transport. Grounded on the teacher's own
// client/transport.go Connect: same Dialer/quic.Config shape, but
// OpenStream's reliable byte stream is used directly for file-transfer
// pumping instead of the teacher's unreliable datagram audio path —
// a file transfer cannot tolerate the loss a datagram allows.
//
// insecureSkipVerify exists for local development against a
// self-signed listener built with GenerateSelfSignedConfig; production
// callers should leave it false and supply a real CA pool via tlsConfig
// if non-nil.
func DialWebTransportTransport(ctx context.Context, addr string, tlsConfig *tls.Config, insecureSkipVerify bool) (*webtransportStream, error) {
	cfg := tlsConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if insecureSkipVerify {
		cfg = cfg.Clone()
		cfg.InsecureSkipVerify = true
	}

	dialCtx, cancel := context.WithTimeout(ctx, WebTransportDialTimeout)
	defer cancel()

	d := webtransport.Dialer{
		TLSClientConfig: cfg,
		QUICConfig: &quic.Config{
			EnableDatagrams:                  true,
			EnableStreamResetPartialDelivery: true,
		},
	}

	_, sess, err := d.Dial(dialCtx, "https://"+addr, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("netfabric: dial webtransport %s: %w", addr, err)
	}

	stream, err := sess.OpenStream()
	if err != nil {
		sess.CloseWithError(0, "failed to open xfer stream")
		return nil, fmt.Errorf("netfabric: open xfer stream: %w", err)
	}

	return &webtransportStream{stream: stream, session: sess}, nil
}
