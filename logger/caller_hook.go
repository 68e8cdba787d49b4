package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when looking for the real call site.
var wrapperPackages = []string{"github.com/sirupsen/logrus", "cryptosignal/logger."}

// callerHook points entry.Caller at the first frame outside logrus and this
// package, so file:line shows the code that logged instead of Entry.Info.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	if entry.Logger == nil || !entry.Logger.ReportCaller {
		return nil
	}
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isWrapper(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isWrapper(fn string) bool {
	for _, p := range wrapperPackages {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}
