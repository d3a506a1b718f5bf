package logger

import "go.uber.org/zap"

// Leveled adapts a zap logger to the key/value logger interface used by HTTP
// retry clients: Error, Warn, Info and Debug taking a message and pairs.
type Leveled struct {
	sugar *zap.SugaredLogger
}

func NewLeveled(logger *zap.Logger) *Leveled {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Leveled{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Info is demoted to debug: retry clients log every request at info level.
func (l *Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}
