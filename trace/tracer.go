// Package trace provides execution tracing for debugging verb dispatch,
// notifications, and event emission (SPEC_FULL.md §6 "CLI/env... honoring
// ECHO_TRACE-style env configuration"). Adapted from MongooseMoo's
// trace/tracer.go (global tracer + glob verb-name filter, one method per
// traced event kind) onto zap's structured logger instead of raw
// fmt.Fprintf lines, the way the rest of this pack's services log.
package trace

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"echo/types"
)

// Tracer gates and formats trace output for one running evaluator.
type Tracer struct {
	enabled bool
	filters []string
	logger  *zap.Logger
	mu      sync.Mutex
}

var globalTracer *Tracer

// Init installs the global tracer. A nil logger falls back to a
// development zap.Logger (human-readable, colorized level names) matching
// what a `-trace` CLI run wants to see on a terminal.
func Init(enabled bool, filters []string, logger *zap.Logger) {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		logger:  logger,
	}
}

// IsEnabled reports whether the global tracer is installed and enabled.
func IsEnabled() bool {
	return globalTracer != nil && globalTracer.enabled
}

// matchesFilter reports whether verbName passes this tracer's glob filters
// (empty filters means "trace everything").
func (t *Tracer) matchesFilter(verbName string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, verbName); matched {
			return true
		}
	}
	return false
}

// VerbCall logs entry into a verb dispatch.
func (t *Tracer) VerbCall(objID types.ObjectID, verbName string, args []types.Value, player, caller types.ObjectID) {
	if !t.enabled || !t.matchesFilter(verbName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	argStrs := make([]string, len(args))
	for i, a := range args {
		argStrs[i] = a.String()
	}
	t.logger.Debug("verb call",
		zap.String("object", objID.String()),
		zap.String("verb", verbName),
		zap.Strings("args", argStrs),
		zap.String("player", player.String()),
		zap.String("caller", caller.String()),
	)
}

// VerbReturn logs a verb's return value.
func (t *Tracer) VerbReturn(objID types.ObjectID, verbName string, result types.Value) {
	if !t.enabled || !t.matchesFilter(verbName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	resultStr := "null"
	if result != nil {
		resultStr = result.String()
	}
	t.logger.Debug("verb return",
		zap.String("object", objID.String()),
		zap.String("verb", verbName),
		zap.String("result", resultStr),
	)
}

// Exception logs a verb dispatch that raised an EvalError.
func (t *Tracer) Exception(objID types.ObjectID, verbName string, err *types.EvalError) {
	if !t.enabled || !t.matchesFilter(verbName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Warn("verb exception",
		zap.String("object", objID.String()),
		zap.String("verb", verbName),
		zap.String("kind", err.Kind.String()),
		zap.String("message", err.Message),
	)
}

// Notify logs a notify() call, truncating long messages for readability.
func (t *Tracer) Notify(player types.ObjectID, message string) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	display := message
	if len(display) > 60 {
		display = display[:57] + "..."
	}
	t.logger.Debug("notify", zap.String("player", player.String()), zap.String("message", display))
}

// EmitEvent logs an event emission (the Echo-domain counterpart of the
// teacher's connection-lifecycle trace, since this runtime has no network
// connections of its own — emit/subscribe is this domain's analogous
// fan-out point).
func (t *Tracer) EmitEvent(name string, source types.ObjectID, subscriberCount int) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger.Debug("emit event",
		zap.String("event", name),
		zap.String("source", source.String()),
		zap.Int("subscribers", subscriberCount),
	)
}

// Global convenience functions mirror the Tracer methods, each a no-op
// when no tracer has been installed.

func VerbCall(objID types.ObjectID, verbName string, args []types.Value, player, caller types.ObjectID) {
	if globalTracer != nil {
		globalTracer.VerbCall(objID, verbName, args, player, caller)
	}
}

func VerbReturn(objID types.ObjectID, verbName string, result types.Value) {
	if globalTracer != nil {
		globalTracer.VerbReturn(objID, verbName, result)
	}
}

func Exception(objID types.ObjectID, verbName string, err *types.EvalError) {
	if globalTracer != nil {
		globalTracer.Exception(objID, verbName, err)
	}
}

func Notify(player types.ObjectID, message string) {
	if globalTracer != nil {
		globalTracer.Notify(player, message)
	}
}

func EmitEvent(name string, source types.ObjectID, subscriberCount int) {
	if globalTracer != nil {
		globalTracer.EmitEvent(name, source, subscriberCount)
	}
}
