package logging

import (
	"fmt"
	"io"
	"log"
)

// Logger is the logging contract used across the CLI, server and refiner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StdLogger writes prefixed lines through a standard library logger.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// New returns a StdLogger writing to w. Debug lines are dropped unless debug is set.
func New(w io.Writer, debug bool) *StdLogger {
	return &StdLogger{logger: log.New(w, "", log.LstdFlags), debug: debug}
}

func (l *StdLogger) Debug(msg string, args ...any) {
	if !l.debug {
		return
	}
	l.logger.Printf("DEBUG: %s", fmt.Sprintf(msg, args...))
}

func (l *StdLogger) Info(msg string, args ...any) {
	l.logger.Printf("INFO: %s", fmt.Sprintf(msg, args...))
}

func (l *StdLogger) Warn(msg string, args ...any) {
	l.logger.Printf("WARN: %s", fmt.Sprintf(msg, args...))
}

func (l *StdLogger) Error(msg string, args ...any) {
	l.logger.Printf("ERROR: %s", fmt.Sprintf(msg, args...))
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
