package infra

import (
	"fmt"
	"log/syslog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Ident tags every system log line.
	Ident string
	// Level is a zap level name; empty means info.
	Level string
	// Foreground also logs to stderr.
	Foreground bool
	// InstanceID is attached to every entry.
	InstanceID string
	// FallbackDir receives <ident>.log when the system log is unreachable.
	FallbackDir string
}

// NewLogger builds the process logger and the level handle that reload hooks
// adjust at runtime.
func NewLogger(opts LoggerOptions) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, level, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core

	facility := syslog.LOG_DAEMON
	if opts.Foreground {
		facility = syslog.LOG_USER
	}
	if w, err := syslog.New(facility|syslog.LOG_INFO, opts.Ident); err == nil {
		sysEnc := encCfg
		sysEnc.TimeKey = ""
		cores = append(cores, NewSyslogCore(zapcore.NewJSONEncoder(sysEnc), w, level))
	} else if !opts.Foreground {
		dir := opts.FallbackDir
		if dir == "" {
			dir = os.TempDir()
		}
		sink, _, err := zap.Open(filepath.Join(dir, opts.Ident+".log"))
		if err != nil {
			return nil, level, fmt.Errorf("no system log and no fallback log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level))
	}

	if opts.Foreground {
		enc := zapcore.NewJSONEncoder(encCfg)
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			consoleCfg := encCfg
			consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(
		zap.String("app", opts.Ident),
		zap.Int("pid", os.Getpid()),
	)
	if opts.InstanceID != "" {
		logger = logger.With(zap.String("instance", opts.InstanceID))
	}
	return logger, level, nil
}

// SyslogWriter is the subset of *syslog.Writer used by the syslog core.
type SyslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Crit(m string) error
}

// syslogCore writes each entry at the syslog priority matching its level.
type syslogCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	w   SyslogWriter
}

// NewSyslogCore creates a zap core that writes encoded entries to w.
func NewSyslogCore(enc zapcore.Encoder, w SyslogWriter, enab zapcore.LevelEnabler) zapcore.Core {
	return &syslogCore{LevelEnabler: enab, enc: enc, w: w}
}

func (c *syslogCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &syslogCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), w: c.w}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *syslogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *syslogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := buf.String()
	buf.Free()

	switch {
	case ent.Level <= zapcore.DebugLevel:
		return c.w.Debug(msg)
	case ent.Level == zapcore.InfoLevel:
		return c.w.Info(msg)
	case ent.Level == zapcore.WarnLevel:
		return c.w.Warning(msg)
	case ent.Level == zapcore.ErrorLevel:
		return c.w.Err(msg)
	default:
		return c.w.Crit(msg)
	}
}

func (c *syslogCore) Sync() error {
	return nil
}
