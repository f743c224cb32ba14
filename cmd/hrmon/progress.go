package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// progressPrinter renders a single-line countdown while a scan runs.
//
// A progressPrinter is single-use: Start at most once, Stop is idempotent.
// The caller must call Stop to terminate the internal goroutine.
type progressPrinter struct {
	prefix    string
	duration  time.Duration
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// newProgressPrinter creates a countdown printer. A zero duration renders
// without remaining seconds, for indefinite scans.
func newProgressPrinter(prefix string, duration time.Duration) *progressPrinter {
	return &progressPrinter{prefix: prefix, duration: duration}
}

func (p *progressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("progressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Printf("\r%s...   ", p.prefix)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.printLine()
			}
		}
	}()
}

func (p *progressPrinter) printLine() {
	if p.duration <= 0 {
		fmt.Printf("\r%s (%ds)   ", p.prefix, int(time.Since(p.startTime).Seconds()))
		return
	}
	remaining := p.duration - time.Since(p.startTime)
	if remaining < 0 {
		remaining = 0
	}
	// Round to the nearest second.
	fmt.Printf("\r%s (%ds left)   ", p.prefix, int(remaining.Seconds()+0.5))
}

// Stop clears the progress line. Safe to call multiple times and from
// multiple goroutines; only the first call does the work.
func (p *progressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Print(clearLineSequence)
}
