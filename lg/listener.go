// Copyright © NGRSoftlab 2020-2025

package lg

// Listener maps leveled platform messages onto a Logger.
// 0 error, 1 warn, 2 normal, 3 verbose, 4 debug
type Listener struct {
	logger Logger
}

// NewListener returns a Listener writing to l
func NewListener(l Logger) *Listener {
	if l == nil {
		l = Discard
	}
	return &Listener{logger: l}
}

// Log writes msg at the zap level matching level
func (ls *Listener) Log(level int, msg string) {
	switch {
	case level <= 0:
		ls.logger.Error(msg)
	case level == 1:
		ls.logger.Warn(msg)
	case level == 2:
		ls.logger.Info(msg)
	default:
		ls.logger.Debug(msg, Int("level", level))
	}
}
