package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type level int32

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

var (
	outMu   sync.Mutex
	out     io.Writer
	service string
	minimum atomic.Int32
)

func init() { minimum.Store(int32(levelInfo)) }

// SetOutput redirects log lines; nil restores stdout.
func SetOutput(w io.Writer) {
	outMu.Lock()
	out = w
	outMu.Unlock()
}

// SetService stamps every line with a "service" field. Empty disables it.
func SetService(name string) {
	outMu.Lock()
	service = name
	outMu.Unlock()
}

// SetLevel drops lines below the named level. Unknown names mean info.
func SetLevel(name string) {
	l := levelInfo
	for i, n := range levelNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			l = level(i)
		}
	}
	minimum.Store(int32(l))
}

// Debug is for per-poll chatter that is off in normal operation.
func Debug(msg string, fields map[string]any) { write(levelDebug, msg, fields) }

func Info(msg string, fields map[string]any) { write(levelInfo, msg, fields) }

func Warn(msg string, fields map[string]any) { write(levelWarn, msg, fields) }

func Error(msg string, fields map[string]any) { write(levelError, msg, fields) }

func write(l level, msg string, fields map[string]any) {
	if int32(l) < minimum.Load() {
		return
	}
	entry := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		entry[k] = v
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	entry["ts"] = now
	entry["level"] = levelNames[l]
	entry["msg"] = msg

	outMu.Lock()
	defer outMu.Unlock()
	if service != "" {
		entry["service"] = service
	}
	w := out
	if w == nil {
		w = os.Stdout
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(w, `{"ts":%q,"level":"error","msg":"log entry dropped","event":%q,"err":%q}`+"\n", now, msg, err.Error())
		return
	}
	w.Write(append(data, '\n'))
}
