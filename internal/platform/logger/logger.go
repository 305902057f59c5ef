package logger

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/ui"
	"github.com/ohmynofan/rewards-orchestrator/pkg/utils"
)

var (
	fileLogger *log.Logger
	once       sync.Once
	logFile    *os.File
)

// ringSize bounds the in-memory recent-logs buffer the Dashboard Gateway's
// GET /api/logs and live log feed read from.
const ringSize = 2000

var (
	ringMu      sync.Mutex
	ring        []string
	subscribers []chan string
)

func appendRing(line string) {
	ringMu.Lock()
	defer ringMu.Unlock()
	ring = append(ring, line)
	if len(ring) > ringSize {
		ring = ring[len(ring)-ringSize:]
	}
	for _, ch := range subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// RecentLines returns up to n of the most recent log lines, oldest first. A
// non-positive n returns every buffered line.
func RecentLines(n int) []string {
	ringMu.Lock()
	defer ringMu.Unlock()
	if n <= 0 || n > len(ring) {
		n = len(ring)
	}
	out := make([]string, n)
	copy(out, ring[len(ring)-n:])
	return out
}

// ClearLines empties the ring buffer — the dashboard's clear-logs command.
func ClearLines() {
	ringMu.Lock()
	defer ringMu.Unlock()
	ring = nil
}

// Subscribe registers ch to receive every future log line as it's written.
// Sends are non-blocking: a slow subscriber misses lines rather than
// stalling the logger.
func Subscribe(ch chan string) {
	ringMu.Lock()
	defer ringMu.Unlock()
	subscribers = append(subscribers, ch)
}

// Unsubscribe removes a channel registered with Subscribe.
func Unsubscribe(ch chan string) {
	ringMu.Lock()
	defer ringMu.Unlock()
	for i, s := range subscribers {
		if s == ch {
			subscribers = append(subscribers[:i], subscribers[i+1:]...)
			return
		}
	}
}

// Init opens the class-tagged file logger at path, truncating any prior run.
func Init(path string) error {
	var err error
	once.Do(func() {
		os.Remove(path)
		if err = os.MkdirAll(dirOf(path), 0o755); err != nil {
			return
		}
		logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		fileLogger = log.New(logFile, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	})
	return err
}

func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

func dirOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "."
	}
	return path[:i]
}

// ClassLogger tags every line with the caller's type name and routes
// operator-facing messages through the session's status line.
type ClassLogger struct {
	class   string
	session *model.Session
}

// NewLogger derives the class tag from v's reflected type; the convention is
// to call NewLogger(self, session) from inside a component's constructor.
func NewLogger(v interface{}, session *model.Session) *ClassLogger {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return &ClassLogger{class: t.Name(), session: normalizeSession(session)}
}

func NewNamed(name string, session *model.Session) *ClassLogger {
	return &ClassLogger{class: name, session: normalizeSession(session)}
}

func normalizeSession(session *model.Session) *model.Session {
	if session == nil {
		return nil
	}
	return session.LoggingSession()
}

// Log writes to the file log and, if session is set, drives the operator
// console's spinner line for durationMs (default 300ms), counting down in
// 1s steps so the UI shows a live delay.
func (l *ClassLogger) Log(msg string, durationMs ...int) {
	totalDuration := 300 * time.Millisecond
	if len(durationMs) > 0 {
		totalDuration = time.Duration(durationMs[0]) * time.Millisecond
	}

	session := l.session
	if session == nil {
		if fileLogger != nil {
			line := fmt.Sprintf("[%s][%s] %s", l.class, callerFunc(2), msg)
			fileLogger.Print(line)
			appendRing(line)
		}
		return
	}

	if fileLogger != nil {
		funcName := callerFunc(2)
		label := fmt.Sprintf("Account %d", session.AccIdx+1)
		line := fmt.Sprintf("[%s][%s][%s] %s", l.class, label, funcName, msg)
		fileLogger.Print(line)
		appendRing(line)
	}

	displayMsg := shortenForDisplay(msg)

	if totalDuration > 0 {
		interval := 1 * time.Second

		for remaining := totalDuration; remaining > 0; remaining -= interval {
			ui.UpdateStatus(*session, displayMsg, remaining)

			sleepTime := interval
			if remaining < interval {
				sleepTime = remaining
			}
			time.Sleep(sleepTime)
		}
	}

	ui.UpdateStatus(*session, displayMsg, 0)
}

// JustLog writes to the file log only, skipping the console countdown.
func (l *ClassLogger) JustLog(msg string) {
	session := l.session
	if fileLogger != nil {
		funcName := callerFunc(2)
		var line string
		if session != nil {
			label := fmt.Sprintf("Account %d", session.AccIdx+1)
			line = fmt.Sprintf("[%s][%s][%s] %s", l.class, label, funcName, msg)
		} else {
			line = fmt.Sprintf("[%s][%s] %s", l.class, funcName, msg)
		}
		fileLogger.Print(line)
		appendRing(line)
	}
}

func (l *ClassLogger) LogObject(msg string, obj interface{}) {
	if fileLogger != nil {
		formattedString, err := utils.FormatObject(obj)
		if err != nil {
			l.JustLog(fmt.Sprintf("Error formatting object: %v", err))
			return
		}
		l.JustLog(fmt.Sprintf("%s : \n%v", msg, formattedString))
	}
}

func callerFunc(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	parts := strings.Split(fn.Name(), ".")
	return parts[len(parts)-1]
}

func shortenForDisplay(msg string) string {
	const maxLen = 140
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen-1]) + "…"
}
