// Package xfer implements the file-transfer engine (C9): a generic
// streaming pump moving bytes between a local file and a
// protocol-supplied transport, gated by a ready mask so a slow UI disk
// or a slow protocol handshake can pause the other side without
// dropping bytes. Grounded on spec.md §4.9's lifecycle and on the
// teacher's internal/blob.Store for the "stat, open, stream" shape of
// local file handling (adapted here to a two-directional pump instead
// of one-shot blob writes).
package xfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imcore/internal/account"
	"imcore/internal/signal"
)

// Direction is send or receive, from the local side's perspective.
type Direction int

const (
	DirSend Direction = iota
	DirRecv
)

// Status is the xfer lifecycle state named in spec.md §3.
type Status int

const (
	StatusNotStarted Status = iota
	StatusAccepted
	StatusStarted
	StatusDone
	StatusCancelLocal
	StatusCancelRemote
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusAccepted:
		return "accepted"
	case StatusStarted:
		return "started"
	case StatusDone:
		return "done"
	case StatusCancelLocal:
		return "cancel-local"
	case StatusCancelRemote:
		return "cancel-remote"
	default:
		return "unknown"
	}
}

// ReadyMask bits. The pump may only run while both are set; a pump
// iteration that consumes a buffer clears both, and each side re-sets
// its own bit by calling SetUIReady/SetProtocolReady.
const (
	UIReady       = 1 << 0
	ProtocolReady = 1 << 1
	bothReady     = UIReady | ProtocolReady
)

// Same growth law as internal/netfabric's QueuedOutputStream: 4KiB
// initial, ×1.5 growth, 64KiB cap — spec.md names this constant twice
// (§4.4 and §4.9) as the same law, so both packages share the shape
// even though each owns its own constants (no cross-package dependency
// between a connection-fabric concern and a file-transfer concern).
const (
	initialBufferSize = 4 * 1024
	maxBufferSize     = 64 * 1024
	bufferGrowth      = 1.5
)

// Transport is the protocol-supplied byte stream an xfer pumps over:
// a TCP fd, or any protocol-mediated stream (the WebTransport stream
// type in internal/netfabric satisfies this).
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}

// Thumbnail is an optional preview blob attached to a send or receive
// xfer, matching spec.md's "optional thumbnail blob+MIME" field.
type Thumbnail struct {
	MIME string
	Data []byte
}

// Xfer is one file transfer in progress.
type Xfer struct {
	Account *account.Account
	Peer    string
	Dir     Direction

	mu sync.Mutex

	status Status
	ready  int

	remoteFilename string // remote-advertised name, RECV only
	localPath      string
	size           int64
	transferred    int64

	startTime time.Time
	endTime   time.Time

	thumbnail *Thumbnail

	transport Transport
	localFile *os.File
	buf       []byte
	pending   []byte // unsent bytes from a partial write, prepended next pump

	cancelled bool
}

// New creates an xfer in StatusNotStarted, matching spec.md's
// new(account, direction, peer).
func New(acct *account.Account, dir Direction, peer string) *Xfer {
	return &Xfer{Account: acct, Dir: dir, Peer: peer, status: StatusNotStarted}
}

func (x *Xfer) Status() Status {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

func (x *Xfer) BytesTransferred() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.transferred
}

func (x *Xfer) Size() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.size
}

// SetSize records the advertised/stat'd total size (SEND: from stat;
// RECV: from the remote's advertisement).
func (x *Xfer) SetSize(size int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.size = size
}

// SetRemoteFilename records the filename the remote advertised, for a
// RECV xfer.
func (x *Xfer) SetRemoteFilename(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.remoteFilename = name
}

func (x *Xfer) RemoteFilename() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.remoteFilename
}

// SetThumbnail attaches a preview blob, matching the add-thumbnail
// signal's purpose.
func (x *Xfer) SetThumbnail(t *Thumbnail) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.thumbnail = t
}

func (x *Xfer) Thumbnail() *Thumbnail {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.thumbnail
}

// StatLocalSendFile validates that path is a readable regular file
// larger than zero bytes, matching spec.md step 2 SEND's "stat it (must
// be a readable regular file > 0 bytes)".
func StatLocalSendFile(path string) (size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("xfer: cannot stat local file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, errors.New("xfer: local file must be a regular file")
	}
	if info.Size() <= 0 {
		return 0, errors.New("xfer: local file must be non-empty")
	}
	return info.Size(), nil
}

// ValidateDestPath rejects any path component equal to "..", matching
// spec.md step 3's "validate path (no ../)".
func ValidateDestPath(path string) error {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.New("xfer: destination path must not contain ..")
		}
	}
	return nil
}

// RequestAccepted validates localPath and transitions to StatusAccepted,
// matching spec.md step 3.
func (x *Xfer) RequestAccepted(localPath string) error {
	if err := ValidateDestPath(localPath); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.localPath = localPath
	x.status = StatusAccepted
	return nil
}

// Start arms the pump: it emits open-local (a plugin may veto to
// supply its own local access, e.g. a cache or in-memory blob, by
// setting MutableLocalOpen.Err to nil and handling reads/writes itself
// via read-local/write-local), then — if not vetoed — opens the local
// file (write-create for RECV, read-only for SEND — "a receive xfer
// must not open its local file until the user has chosen a destination
// path" is enforced by Start only ever running after RequestAccepted),
// records start_time, and transitions to StatusStarted. The transport
// is expected to already be connected; dialing it asynchronously is the
// caller's (netfabric's) responsibility per spec.md's suspension-point
// rule.
func (x *Xfer) Start(bus *signal.Bus, transport Transport) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.status != StatusAccepted {
		return fmt.Errorf("xfer: start requires StatusAccepted, got %s", x.status)
	}

	mut := &MutableLocalOpen{Path: x.localPath}
	vetoed := bus != nil && bus.Emit(x, SignalOpenLocal, mut)

	var f *os.File
	var err error
	if vetoed {
		err = mut.Err
	} else {
		switch x.Dir {
		case DirSend:
			f, err = os.Open(x.localPath)
		case DirRecv:
			f, err = os.OpenFile(x.localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		}
	}
	if err != nil {
		x.status = StatusCancelLocal
		return fmt.Errorf("xfer: open local file: %w", err)
	}
	x.localFile = f
	x.transport = transport
	x.buf = make([]byte, initialBufferSize)
	x.startTime = time.Now()
	x.status = StatusStarted
	return nil
}

// SetUIReady / SetProtocolReady / ClearReady implement the ready-mask
// protocol from spec.md §4.9: the pump runs only when both bits are
// set, and both are cleared after every iteration that consumed a
// buffer.
func (x *Xfer) SetUIReady() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ready |= UIReady
}

func (x *Xfer) SetProtocolReady() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ready |= ProtocolReady
}

func (x *Xfer) isReady() bool {
	return x.ready&bothReady == bothReady
}

// PumpResult reports what one Pump call did, so a caller (typically an
// event-loop watch callback) can decide whether to keep the watch armed
// or tear the xfer down.
type PumpResult struct {
	BytesMoved int
	Done       bool
	Err        error
}

// Pump runs exactly one read/write step of the transfer — the unit
// spec.md calls "the xfer engine's per-iteration step that moves one
// buffer of bytes" — and is a no-op (returns BytesMoved=0) if the ready
// mask isn't fully set. It never blocks beyond one read or one write
// syscall's worth of work, matching the "no sleep, no synchronous
// network I/O beyond a single suspension point" scheduling rule. bus
// may be nil, in which case the read-local/write-local/data-not-sent
// hooks are skipped and the default local-file behavior always runs.
func (x *Xfer) Pump(bus *signal.Bus) PumpResult {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.status != StatusStarted {
		return PumpResult{}
	}
	if !x.isReady() {
		return PumpResult{}
	}

	var moved int
	var err error
	switch x.Dir {
	case DirSend:
		moved, err = x.pumpSendLocked(bus)
	case DirRecv:
		moved, err = x.pumpRecvLocked(bus)
	}

	x.ready = 0 // cleared after every iteration that consumed a buffer

	if err != nil && err != io.EOF {
		return PumpResult{BytesMoved: moved, Err: err}
	}

	x.transferred += int64(moved)
	x.growBufferLocked(moved)

	done := x.transferred >= x.size && x.size > 0
	if done {
		x.endLocked(StatusDone)
	}
	return PumpResult{BytesMoved: moved, Done: done}
}

func (x *Xfer) growBufferLocked(consumed int) {
	if consumed < len(x.buf) {
		return // buffer wasn't fully consumed this iteration; no growth
	}
	grown := int(float64(len(x.buf)) * bufferGrowth)
	if grown > maxBufferSize {
		grown = maxBufferSize
	}
	if grown > len(x.buf) {
		x.buf = make([]byte, grown)
	}
}

// pumpSendLocked reads from the local file and writes to the wire,
// prepending any previously-unsent bytes first (partial-write ordering
// guarantee from spec.md §5). Its return value is the total number of
// bytes the pump consumed this iteration — flushed pending bytes plus
// any newly read-and-written bytes — so Pump's transferred += moved
// bookkeeping never drops bytes that were in fact sent.
func (x *Xfer) pumpSendLocked(bus *signal.Bus) (int, error) {
	var flushed int
	if len(x.pending) > 0 {
		n, err := x.transport.Write(x.pending)
		if n < len(x.pending) {
			x.pending = x.pending[n:]
			emitDataNotSent(bus, x, x.pending)
			return n, err
		}
		flushed = n
		x.pending = nil
		if err != nil {
			return flushed, err
		}
	}

	mutRead := &MutableLocalIO{Buf: x.buf}
	var n int
	var readErr error
	if bus != nil && bus.Emit(x, SignalReadLocal, mutRead) {
		n, readErr = mutRead.N, mutRead.Err
	} else {
		n, readErr = x.localFile.Read(x.buf)
	}
	if n == 0 {
		// local read returned 0: wait for a UI re-ready signal instead of
		// treating this as an error, matching spec.md step 5 SEND.
		return flushed, nil
	}

	written, writeErr := x.transport.Write(x.buf[:n])
	if written < n {
		x.pending = append([]byte(nil), x.buf[written:n]...)
		emitDataNotSent(bus, x, x.pending)
	}
	if writeErr != nil {
		return flushed + written, writeErr
	}
	if readErr != nil && readErr != io.EOF {
		return flushed + written, readErr
	}
	return flushed + written, nil
}

// pumpRecvLocked reads from the wire and writes to the local file,
// truncating a size overrun with a warning (the caller inspects the
// returned count against remaining size to log that warning — this
// package has no logger dependency of its own, matching imutil's
// pure-function stance).
func (x *Xfer) pumpRecvLocked(bus *signal.Bus) (int, error) {
	n, readErr := x.transport.Read(x.buf)
	if n == 0 {
		return 0, readErr
	}
	remaining := x.size - x.transferred
	if remaining > 0 && int64(n) > remaining {
		n = int(remaining)
	}

	mutWrite := &MutableLocalIO{Buf: x.buf[:n]}
	var written int
	var writeErr error
	if bus != nil && bus.Emit(x, SignalWriteLocal, mutWrite) {
		written, writeErr = mutWrite.N, mutWrite.Err
	} else {
		written, writeErr = x.localFile.Write(x.buf[:n])
	}
	if writeErr != nil {
		return written, writeErr
	}
	if readErr != nil && readErr != io.EOF {
		return written, readErr
	}
	return written, nil
}

// End forces the transfer into a terminal state: it records end_time and
// closes the local file and the transport. It emits no signal, writes no
// conversation message and calls no protocol cancel hook. It is the direct
// entry point for teardown paths that aren't driven by the pump
// reaching size == transferred.
func (x *Xfer) End(status Status) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.endLocked(status)
}

func (x *Xfer) endLocked(status Status) {
	if x.status == StatusDone || x.status == StatusCancelLocal || x.status == StatusCancelRemote {
		return // idempotent: already terminal
	}
	x.status = status
	x.endTime = time.Now()
	if x.localFile != nil {
		x.localFile.Close()
	}
	if x.transport != nil {
		x.transport.Close()
	}
}

// CancelLocal and CancelRemote are the explicit endings spec.md step 6
// names; both result in End() with the matching status.
func (x *Xfer) CancelLocal()  { x.End(StatusCancelLocal) }
func (x *Xfer) CancelRemote() { x.End(StatusCancelRemote) }

// Signal names the xfer engine emits, matching spec.md §4.9's list.
const (
	SignalOpenLocal    = "open-local"
	SignalQueryLocal   = "query-local"
	SignalReadLocal    = "read-local"
	SignalWriteLocal   = "write-local"
	SignalDataNotSent  = "data-not-sent"
	SignalAddThumbnail = "add-thumbnail"
	SignalFileRecvReq  = "file-recv-request"
)

// MutableLocalOpen is open-local's out-param: a handler that vetoes
// supplies Err directly (nil meaning it has taken over local access
// itself) instead of the default os.Open/os.OpenFile call, matching
// spec.md §4.9's "plugins may override local file access, e.g. for a
// cache or an in-memory blob". A plugin that vetoes open-local is
// responsible for also vetoing read-local/write-local, since no
// *os.File exists for the default pump to fall back on.
type MutableLocalOpen struct {
	Path string
	Err  error
}

// MutableLocalQuery is query-local's out-param, letting a handler
// replace the local-file stat result spec.md step 2 SEND names
// ("stat it (must be a readable regular file > 0 bytes)").
type MutableLocalQuery struct {
	Path string
	Size int64
	Err  error
}

// MutableLocalIO is the read-local/write-local out-param: a handler
// that vetoes supplies N/Err directly, replacing the default
// localFile.Read/Write call for that iteration. For read-local, Buf
// starts as the pump's own scratch buffer, which the handler may fill
// before setting N.
type MutableLocalIO struct {
	Buf []byte
	N   int
	Err error
}

// emitDataNotSent fires data-not-sent when a partial write leaves bytes
// queued, matching spec.md's "Partial write → enqueue unsent data and
// emit data-not-sent" failure semantics. bus may be nil (no-op), since
// Pump itself may be driven without a bus attached.
func emitDataNotSent(bus *signal.Bus, x *Xfer, unsent []byte) {
	if bus == nil {
		return
	}
	bus.Emit(x, SignalDataNotSent, unsent)
}

// QueryLocalSend runs spec.md step 2 SEND's stat: it emits query-local
// so a plugin may override the result (e.g. for a cache or in-memory
// blob with no real path on disk), falling back to StatLocalSendFile
// when not vetoed.
func QueryLocalSend(bus *signal.Bus, x *Xfer, path string) (int64, error) {
	mut := &MutableLocalQuery{Path: path}
	if bus != nil && bus.Emit(x, SignalQueryLocal, mut) {
		return mut.Size, mut.Err
	}
	return StatLocalSendFile(path)
}

// RequestFileRecv drives spec.md step 2 RECV: it emits file-recv-request
// so a plugin may cancel, rename (by calling x.SetRemoteFilename before
// returning), or auto-accept (by calling x.RequestAccepted itself and
// vetoing) the transfer; if the plugin left it untouched, it prompts
// the embedder via accept — the XferUiOps.RequestAccept callback —
// before RequestAccepted/Start run. accept may be nil, in which case an
// unhandled request is simply left in StatusNotStarted for the caller
// to drive some other way.
func RequestFileRecv(bus *signal.Bus, x *Xfer, advertisedFilename string, accept func(peer, filename string, size int64, onAccept func(localPath string, ok bool))) {
	x.SetRemoteFilename(advertisedFilename)
	if bus != nil && bus.Emit(x, SignalFileRecvReq, x, advertisedFilename) {
		return // plugin handled it (cancelled, renamed, or auto-accepted)
	}
	if x.Status() != StatusNotStarted || accept == nil {
		return
	}
	accept(x.Peer, advertisedFilename, x.Size(), func(localPath string, ok bool) {
		if !ok {
			x.CancelLocal()
			return
		}
		x.RequestAccepted(localPath)
	})
}
