package modules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// statusBacklog is the listen queue of the status socket.
const statusBacklog = 16

// StatusPort serves a one-shot status report on a local stream socket. Each
// client gets the report and is disconnected.
//
// The socket works on raw descriptors because the event loop polls them
// directly.
type StatusPort struct {
	path    string
	rt      *daemon.Runtime
	logger  *zap.Logger
	started int64

	listenFD   int
	listenSlot int
	clients    []*statusClient
}

type statusClient struct {
	fd      int
	pending []byte
	slot    int
}

// NewStatusPort creates the module for the socket at path.
func NewStatusPort(path string) *StatusPort {
	return &StatusPort{path: path, listenFD: -1, listenSlot: -1}
}

func (s *StatusPort) Name() string { return "statusport" }

func (s *StatusPort) Init(rt *daemon.Runtime, diag io.Writer) error {
	s.rt = rt
	s.logger = rt.Logger().With(zap.String("module", s.Name()))
	s.started = rt.Now()

	// The singleton lock is held, so a leftover socket is stale.
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", s.path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("status socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: s.path}); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("bind %s: %w", s.path, err)
	}
	if err := unix.Listen(fd, statusBacklog); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	s.listenFD = fd
	_, _ = fmt.Fprintf(diag, "status socket listening on %s\n", s.path)

	rt.OnPoll(s)
	rt.OnWantExit(domain.WantExitFunc(s.closeListener))
	rt.OnCanExit(domain.CanExitFunc(s.drained))
	rt.OnDestruct(domain.DestructFunc(s.destruct))
	return nil
}

// Describe asks for new connections and for writability of clients that
// still have output.
func (s *StatusPort) Describe(set *domain.ReadinessSet) {
	s.listenSlot = -1
	if s.listenFD >= 0 {
		s.listenSlot = set.Add(s.listenFD, domain.EventRead)
	}
	for _, c := range s.clients {
		c.slot = set.Add(c.fd, domain.EventWrite)
	}
}

// Serve accepts ready connections and flushes ready clients.
func (s *StatusPort) Serve(set *domain.ReadinessSet) {
	kept := s.clients[:0]
	for _, c := range s.clients {
		if set.Ready(c.slot, domain.EventWrite|domain.EventError|domain.EventHangup) {
			if s.flush(c) {
				continue
			}
		}
		kept = append(kept, c)
	}
	s.clients = kept

	if s.listenSlot >= 0 && set.Ready(s.listenSlot, domain.EventRead) {
		s.accept()
	}
}

func (s *StatusPort) accept() {
	for {
		fd, _, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		s.clients = append(s.clients, &statusClient{fd: fd, pending: s.report(), slot: -1})
	}
}

// flush writes pending output and reports whether the client is finished.
func (s *StatusPort) flush(c *statusClient) bool {
	for len(c.pending) > 0 {
		n, err := unix.SendmsgN(c.fd, c.pending, nil, nil, unix.MSG_NOSIGNAL)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return false
		}
		if err != nil {
			s.logger.Debug("status client gone", zap.Error(err))
			break
		}
		c.pending = c.pending[n:]
	}
	_ = unix.Close(c.fd)
	return true
}

func (s *StatusPort) report() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "app: %s\n", s.rt.App())
	fmt.Fprintf(&b, "pid: %d\n", os.Getpid())
	fmt.Fprintf(&b, "state: %s\n", s.rt.Control().State())
	fmt.Fprintf(&b, "uptime_seconds: %d\n", s.rt.Now()-s.started)

	if reg := s.rt.Metrics().Registry(); reg != nil {
		families, err := reg.Gather()
		if err != nil {
			s.logger.Warn("gather metrics", zap.Error(err))
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
				s.logger.Warn("encode metrics", zap.Error(err))
				break
			}
		}
	}
	return b.Bytes()
}

// closeListener stops accepting; clients already connected still get their
// report.
func (s *StatusPort) closeListener() {
	if s.listenFD < 0 {
		return
	}
	_ = unix.Close(s.listenFD)
	s.listenFD = -1
	s.listenSlot = -1
	s.logger.Info("status socket closed", zap.Int("pending_clients", len(s.clients)))
}

func (s *StatusPort) drained() bool {
	return len(s.clients) == 0
}

func (s *StatusPort) destruct() {
	s.closeListener()
	for _, c := range s.clients {
		_ = unix.Close(c.fd)
	}
	s.clients = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("remove status socket", zap.Error(err))
	}
}

// Ensure StatusPort implements domain.Pollable.
var _ domain.Pollable = (*StatusPort)(nil)
