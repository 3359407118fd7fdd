// ABOUTME: Progress reporting for long-running jobs
// ABOUTME: Backfill and clustering report batch counts through a Reporter
package progress

import "log"

// Reporter receives progress updates from long-running jobs
type Reporter interface {
	// Report is called after each unit of work with done/total counts
	Report(stage string, done, total int)
}

// Nop discards all progress updates
type Nop struct{}

func (Nop) Report(string, int, int) {}

// Log writes progress updates to the standard logger
type Log struct{}

func (Log) Report(stage string, done, total int) {
	log.Printf("%s: %d/%d", stage, done, total)
}

// Func adapts a function to the Reporter interface
type Func func(stage string, done, total int)

func (f Func) Report(stage string, done, total int) { f(stage, done, total) }
