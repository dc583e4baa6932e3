// A simple telemetry package.
// Log output goes through zap; counters are in-process only.
package telemetry

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type TelemetryData struct {
	logger *zap.SugaredLogger

	counterLock sync.Mutex
	counters    map[string]int

	trace bool
}

var data = TelemetryData{
	counters: make(map[string]int),
	trace:    true,
}

// init is called at program startup time to initialize the logger
func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	data.logger = logger.Sugar()
}

func Log(format string, args ...any) {
	data.logger.Infof(format, args...)
}

func Trace(format string, args ...any) {
	if data.trace {
		data.logger.Debugf(format, args...)
	}
}

func Error(err error, format string, args ...any) {
	data.logger.Errorw(fmt.Sprintf(format, args...), zap.Error(err))
	Increment("errors", 1)
}

// Request logs essential information about an HTTP request
func Request(r *http.Request, format string, args ...any) {
	data.logger.Infow(fmt.Sprintf(format, args...),
		"method", r.Method, "url", r.URL.String())
}

// Increment increases a count, thread-safe
func Increment(name string, n int) {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	data.counters[name] += n
}

func GetCounter(name string) int {
	data.counterLock.Lock()
	defer data.counterLock.Unlock()
	return data.counters[name]
}

func LogCounters() {
	s := make([]string, 0)
	data.counterLock.Lock()
	for k, v := range data.counters {
		s = append(s, fmt.Sprintf("%s=%d", k, v))
	}
	data.counterLock.Unlock()
	if len(s) == 0 {
		s = append(s, "no counters were recorded")
	}
	Log(strings.Join(s, ", "))
}
