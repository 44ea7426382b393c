// Package remotelog ships agent log entries to the collector through the remote log queue.
package remotelog

import (
	"fmt"
	"strings"

	"github.com/and161185/csm-transport/internal/sending"
	"github.com/and161185/csm-transport/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Core is a zapcore.Core that offers every enabled entry to the remote log queue. The queue
// must not log through a logger carrying this core.
type Core struct {
	zapcore.LevelEnabler
	queue   *sending.SendingQueue[model.RemoteLogRecords]
	context model.RemoteLogContext
	enc     zapcore.Encoder
}

func NewCore(queue *sending.SendingQueue[model.RemoteLogRecords], level zapcore.LevelEnabler, ctx model.RemoteLogContext) *Core {
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		NameKey:        "logger",
		CallerKey:      "caller",
		LineEnding:     "",
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return &Core{
		LevelEnabler: level,
		queue:        queue,
		context:      ctx,
		enc:          zapcore.NewConsoleEncoder(encCfg),
	}
}

// Attach returns logger writing both to its own core and to c.
func Attach(logger *zap.SugaredLogger, c *Core) *zap.SugaredLogger {
	return logger.Desugar().WithOptions(zap.WrapCore(func(inner zapcore.Core) zapcore.Core {
		return zapcore.NewTee(inner, c)
	})).Sugar()
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.enc = c.enc.Clone()
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	if exc := exceptionType(fields); exc != "" {
		clone.context.ExceptionType = exc
	}
	return &clone
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	msg := strings.TrimSpace(buf.String())
	buf.Free()

	rec := model.RemoteLogRecords{
		Context: c.context,
		Logs: []model.RemoteLogRecord{{
			Level:    levelOf(ent.Level),
			Messages: []string{msg},
		}},
	}
	rec.Context.Timestamp = ent.Time.UnixMilli()
	if ent.Caller.Defined {
		rec.Context.LogID = ent.Caller.TrimmedPath()
	}
	if exc := exceptionType(fields); exc != "" {
		rec.Context.ExceptionType = exc
	}

	if !c.queue.Offer(rec) {
		return fmt.Errorf("remote log queue refused entry")
	}
	return nil
}

func (c *Core) Sync() error { return nil }

func levelOf(l zapcore.Level) model.LogLevel {
	switch {
	case l >= zapcore.ErrorLevel:
		return model.LogLevelError
	case l == zapcore.WarnLevel:
		return model.LogLevelWarn
	case l == zapcore.InfoLevel:
		return model.LogLevelInfo
	default:
		return model.LogLevelDebug
	}
}

// exceptionType names the type of the first error field.
func exceptionType(fields []zapcore.Field) string {
	for _, f := range fields {
		if f.Type != zapcore.ErrorType {
			continue
		}
		if err, ok := f.Interface.(error); ok {
			return fmt.Sprintf("%T", err)
		}
	}
	return ""
}
