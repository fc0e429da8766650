package common

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextHook sets "stck" to the function, file and line the entry was logged from
type ContextHook struct{}

func (hook ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook ContextHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["stck"]; ok {
		return nil
	}

	if loc := logCallSite(); loc != "" {
		entry.Data["stck"] = loc
	}
	return nil
}

// logCallSite walks up past the hook machinery and logrus itself
func logCallSite() string {
	pcs := make([]uintptr, 8)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.Contains(frame.Function, "github.com/sirupsen/logrus") &&
			!strings.HasSuffix(frame.Function, "common.ContextHook.Fire") {
			return filepath.Base(frame.Function) + ":" + filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}

		if !more {
			return ""
		}
	}
}
