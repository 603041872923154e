package whatsmeow

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/goliatone/go-wabridge/core"
)

// waLogger routes whatsmeow's printf style logs into the bridge logger.
type waLogger struct {
	logger  core.Logger
	session string
	module  string
}

func newWALogger(logger core.Logger, sessionName string) waLogger {
	return waLogger{logger: logger, session: sessionName}
}

func (l waLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...), l.fields()...)
}

func (l waLogger) Infof(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...), l.fields()...)
}

func (l waLogger) Warnf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...), l.fields()...)
}

func (l waLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...), l.fields()...)
}

func (l waLogger) Sub(module string) waLog.Logger {
	if l.module != "" {
		module = l.module + "/" + module
	}
	return waLogger{logger: l.logger, session: l.session, module: module}
}

func (l waLogger) fields() []any {
	return []any{"session", l.session, "module", l.module}
}

var _ waLog.Logger = waLogger{}
