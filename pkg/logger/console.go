package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ANSI Color codes
const (
	ColorReset      = "\033[0m"
	ColorRed        = "\033[31m"
	ColorGreen      = "\033[32m"
	ColorYellow     = "\033[1;33m"
	ColorBlue       = "\033[34m"
	ColorCyan       = "\033[36m"
	ColorBrightCyan = "\033[1;36m"
)

// FormatConsoleLog formats a message with color based on level
func FormatConsoleLog(level string, msg string) string {
	timestamp := time.Now().Format("15:04:05")
	var color string
	switch level {
	case "INFO":
		color = ColorGreen
	case "WARN":
		color = ColorYellow
	case "ERROR":
		color = ColorRed
	case "DEBUG":
		color = ColorCyan
	default:
		color = ColorReset
	}

	return fmt.Sprintf("%s%s [%s] %s%s", color, timestamp, level, msg, ColorReset)
}

// FormatTagged renders "[tag] msg" in the given color.
func FormatTagged(color, tag, msg string) string {
	return fmt.Sprintf("%s[%s] %s%s", color, tag, msg, ColorReset)
}

// Console writes colored lines; safe for concurrent use.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console on w, or stdout when w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) Tagged(color, tag, format string, args ...any) {
	line := FormatTagged(color, tag, fmt.Sprintf(format, args...))
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// ConsoleLog prints a formatted log to stdout immediately (bypass structured logger for CLI/UI)
func ConsoleLog(level, msg string) {
	fmt.Println(FormatConsoleLog(level, msg))
}
