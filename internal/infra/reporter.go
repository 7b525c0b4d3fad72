package infra

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// Reporter sends startup messages to the logger and, while the launcher is
// still listening, to the diagnostic channel.
type Reporter struct {
	logger *zap.Logger
	diag   io.Writer
}

// NewReporter creates a reporter. diag may be nil.
func NewReporter(logger *zap.Logger, diag io.Writer) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger, diag: diag}
}

// SetDiagnostics replaces the diagnostic channel.
func (r *Reporter) SetDiagnostics(w io.Writer) {
	r.diag = w
}

// Diagnostics returns the current diagnostic channel.
func (r *Reporter) Diagnostics() io.Writer {
	if r.diag == nil {
		return io.Discard
	}
	return r.diag
}

// Infof reports a progress message.
func (r *Reporter) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Info(msg)
	r.emit(msg)
}

// Errorf reports a startup failure.
func (r *Reporter) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Error(msg)
	r.emit(msg)
}

func (r *Reporter) emit(msg string) {
	if r.diag == nil {
		return
	}
	_, _ = fmt.Fprintln(r.diag, msg)
}

// Ensure Reporter implements domain.StartupReporter.
var _ domain.StartupReporter = (*Reporter)(nil)
