package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
	Bold   = "\033[1m"
)

var (
	lastLineLength int
	mu             sync.Mutex
)

func PrintBanner() {
	banner := `
   ____           __
  / ___|_____   _/ _| ___  _ __ __ _  ___
 | |   / _ \ \ / / |_ / _ \| '__/ _` + "`" + ` |/ _ \
 | |__| (_) \ V /|  _| (_) | | | (_| |  __/
  \____\___/ \_/ |_|  \___/|_|  \__, |\___|
                                |___/
`
	fmt.Println(Cyan + banner + Reset)
	fmt.Println(Gray + "  v1.0.0 - Guarded CashScript Covenant Synthesis & Audit" + Reset)
	fmt.Println()
}

func clearLine() {
	fmt.Print("\r\033[K")
}

func UpdateStatus(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, a...)
	clearLine()

	// Truncate if too long to avoid wrapping issues (simple approach)
	if len(msg) > 100 {
		msg = msg[:97] + "..."
	}

	fmt.Print(Cyan + "⚡ " + msg + Reset)
	lastLineLength = len(msg)
}

func LogSuccess(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Green+"[SUCCESS] "+Reset+format+"\n", a...)
}

func LogIssues(contract string, detected int, semantic int) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Red+"[ISSUES] "+Reset+"%s | Deterministic: %d | Semantic: %d\n", contract, detected, semantic)
}

func LogInfo(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Blue+"[INFO] "+Reset+format+"\n", a...)
}

func LogError(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Printf(Red+"[ERROR] "+Reset+format+"\n", a...)
}

func StartSpinner(msg string) chan bool {
	stop := make(chan bool)
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
				mu.Lock()
				clearLine()
				fmt.Printf(Cyan+"%s %s"+Reset, frames[i%len(frames)], msg)
				mu.Unlock()
				time.Sleep(100 * time.Millisecond)
				i++
			}
		}
	}()
	return stop
}

func PrintStats(total, passed, failed int, duration time.Duration) {
	fmt.Println()
	fmt.Println(Gray + strings.Repeat("─", 50) + Reset)
	fmt.Printf("🏁 Run completed in %s\n", duration)
	fmt.Printf("📊 Total: %d | ✅ Passed: %d | ❌ Failed: %d\n", total, passed, failed)
	fmt.Println(Gray + strings.Repeat("─", 50) + Reset)
}
