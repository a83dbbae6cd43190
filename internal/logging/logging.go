// Package logging prints the timestamped, leveled lines that make up the
// election transcript. The test harness greps this output, so the format
// is part of the external contract.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	out = log.New(os.Stdout, "", 0)
)

// SetOutput redirects the transcript, typically to a buffer in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
}

func emit(level, component, message string) {
	mu.Lock()
	defer mu.Unlock()
	out.Output(2, fmt.Sprintf("[%s] [%s] [%s] %s",
		time.Now().Format("15:04:05"), level, component, message))
}

func Info(component, message string) {
	emit("INFO", component, message)
}

func Error(component, message string) {
	emit("ERROR", component, message)
}
