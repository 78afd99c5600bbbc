package core

// Logger is the app-wide leveled logger.
// Implementations may forward records to an error tracking service; extra args
// are attached to the record as-is.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
