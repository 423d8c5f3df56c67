package emu

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"
)

// TraceHook logs every register file access at debug level.
type TraceHook struct {
	Logger logrus.FieldLogger
}

// NewTraceHook creates a TraceHook that logs to logger.
func NewTraceHook(logger logrus.FieldLogger) *TraceHook {
	return &TraceHook{Logger: logger}
}

// Func implements sim.Hook.
func (h *TraceHook) Func(ctx sim.HookCtx) {
	access, ok := ctx.Item.(Access)
	if !ok {
		return
	}

	fields := logrus.Fields{
		"pos":   ctx.Pos.Name,
		"reg":   access.Reg.String(),
		"value": access.Value.Hex(),
	}
	if access.Mode != 0 {
		fields["mode"] = access.Mode.String()
	}

	h.Logger.WithFields(fields).Debug("RegFile access")
}
