package controller

import "go.uber.org/zap"

// Notifier receives user-facing sync notifications. The core never assumes
// a particular UI is listening; a local UI can plug in its own toasts.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// LogNotifier is the default Notifier, writing notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(msg string) {
	n.logger.Info("Sync notification", zap.String("level", "success"), zap.String("message", msg))
}

func (n *LogNotifier) Warning(msg string) {
	n.logger.Warn("Sync notification", zap.String("level", "warning"), zap.String("message", msg))
}

func (n *LogNotifier) Error(msg string) {
	n.logger.Error("Sync notification", zap.String("level", "error"), zap.String("message", msg))
}
