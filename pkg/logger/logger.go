package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

var (
	cInf  = color.New(color.FgCyan, color.Bold).SprintFunc()
	cWarn = color.New(color.FgYellow, color.Bold).SprintFunc()
	cErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	cSucc = color.New(color.FgGreen, color.Bold).SprintFunc()
	cDbg  = color.New(color.FgMagenta).SprintFunc()
	cFatl = color.New(color.BgRed, color.FgWhite, color.Bold).SprintFunc()
	cTime = color.New(color.FgHiBlack).SprintFunc()
)

var (
	debug atomic.Bool

	outMu sync.Mutex
	out   io.Writer = os.Stdout
	errw  io.Writer = os.Stderr
)

func init() {
	log.SetFlags(0)
}

// SetDebug toggles LogDebug output (wired to --verbose).
func SetDebug(enabled bool) {
	debug.Store(enabled)
}

// SetOutput redirects both streams. Passing nil restores stdout/stderr.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		out, errw = os.Stdout, os.Stderr
		return
	}
	out, errw = w, w
}

func timeStamp() string {
	return cTime(time.Now().Format("2006-01-02 15:04:05"))
}

func write(w func() io.Writer, tag, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	outMu.Lock()
	fmt.Fprintf(w(), "%s %s %s\n", timeStamp(), tag, msg)
	outMu.Unlock()
}

func stdout() io.Writer { return out }
func stderr() io.Writer { return errw }

func LogInfo(format string, v ...interface{}) {
	write(stdout, cInf("[INFO]"), format, v...)
}

func LogSuccess(format string, v ...interface{}) {
	write(stdout, cSucc("[OK]"), format, v...)
}

func LogWarn(format string, v ...interface{}) {
	write(stdout, cWarn("[WARN]"), format, v...)
}

func LogDebug(format string, v ...interface{}) {
	if !debug.Load() {
		return
	}
	write(stdout, cDbg("[DEBUG]"), format, v...)
}

// LogRequest writes one access log line without a level tag.
func LogRequest(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	outMu.Lock()
	fmt.Fprintf(out, "%s %s\n", timeStamp(), msg)
	outMu.Unlock()
}

func LogError(format string, v ...interface{}) {
	write(stderr, cErr("[ERR]"), format, v...)
}

func LogFatal(format string, v ...interface{}) {
	write(stderr, cFatl("[FATAL]"), format, v...)
	os.Exit(1)
}

func LogServerStart(port int, baseURL string) {
	fmt.Println()
	fmt.Printf("   %s  %s\n", cSucc("⚡ Sprout is serving"), cTime("waiting for requests..."))
	fmt.Printf("   %s  %s\n", cInf("➜ Local:"), fmt.Sprintf("http://localhost:%d", port))
	fmt.Printf("   %s  %s\n", cInf("➜ Public:"), color.New(color.FgHiBlue, color.Underline).Sprint(baseURL))
	fmt.Println()
}
