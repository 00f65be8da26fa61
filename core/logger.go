package core

// Logger is implemented by services/logger (std & rollbar).
// Error args may include a user value so the reporting backend
// can attach the request user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
