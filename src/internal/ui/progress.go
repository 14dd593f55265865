package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const Clear = "\033[2K\r"

type ProgressBar struct {
	total       int
	current     int
	failCount   int
	startTime   time.Time
	description string
	mu          sync.Mutex
	width       int
}

func NewProgressBar(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		current:     0,
		startTime:   time.Now(),
		description: description,
		width:       40,
	}
}

func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
	pb.render()
}

// AddFailure bumps the failure counter; the next render picks it up.
func (pb *ProgressBar) AddFailure() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.failCount++
}

func (pb *ProgressBar) PrintMsg(msg string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	fmt.Print(Clear)
	fmt.Println(msg)
	pb.render()
}

func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = pb.total
	fmt.Print(Clear)
	pb.render()
	fmt.Println()
}

func (pb *ProgressBar) render() {
	percent := float64(pb.current) / float64(pb.total)
	if percent > 1.0 {
		percent = 1.0
	}

	filled := int(float64(pb.width) * percent)
	bar := strings.Repeat("=", filled)
	if filled < pb.width {
		bar += ">" + strings.Repeat(".", pb.width-filled-1)
	} else {
		bar = strings.Repeat("=", pb.width)
	}

	elapsed := time.Since(pb.startTime)
	rate := float64(pb.current) / elapsed.Seconds()
	remaining := time.Duration(0)
	if rate > 0 {
		remaining = time.Duration(float64(pb.total-pb.current)/rate) * time.Second
	}
	etaStr := fmt.Sprintf("%02dm%02ds", int(remaining.Minutes()), int(remaining.Seconds())%60)

	barColor := Cyan
	if percent >= 1.0 {
		barColor = Green
	}

	failColor := Green
	if pb.failCount > 0 {
		failColor = Red
	}

	fmt.Printf("%s%s %s[%s]%s %.0f%% | %d/%d | ETA: %s | Failures: %s%d%s \n",
		Clear,
		pb.description,
		barColor, bar, Reset,
		percent*100,
		pb.current, pb.total,
		etaStr,
		failColor, pb.failCount, Reset,
	)
}

func FormatFailureMsg(caseID string, reasons []string) string {
	return fmt.Sprintf(" %s🔴 %s%s%s failed: %s",
		Red, Bold, caseID, Reset, strings.Join(reasons, ", "))
}
