package httpclient

import (
	"fmt"
	"strings"
)

// Logger defines the logging surface the adapter relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// restyLogger routes resty's printf-style logging into Logger.
type restyLogger struct {
	log Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.log.ErrorObj("resty error", "resty", restyLine(format, v...))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.log.WarnObj("resty warning", "resty", restyLine(format, v...))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.log.DebugObj("resty debug", "resty", restyLine(format, v...))
}

func restyLine(format string, v ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
