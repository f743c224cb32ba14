package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/srg/hrmon/internal/bus"
	"golang.org/x/term"
)

// displayPollInterval matches the consumer contract: poll roughly ten times
// per second, never block on the producer.
const displayPollInterval = 100 * time.Millisecond

var (
	restingColor  = color.New(color.FgCyan, color.Bold)
	normalColor   = color.New(color.FgGreen, color.Bold)
	elevatedColor = color.New(color.FgYellow, color.Bold)
	highColor     = color.New(color.FgRed, color.Bold)
)

// display renders samples and status messages from the bus to the terminal.
// On an interactive terminal the reading updates in place; otherwise each
// sample becomes its own line.
type display struct {
	bus         *bus.Bus
	out         io.Writer
	interactive bool
}

func newDisplay(b *bus.Bus) *display {
	return &display{
		bus:         b,
		out:         os.Stdout,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Run polls the bus until ctx is cancelled, draining whatever accumulated
// between polls.
func (d *display) Run(ctx context.Context) {
	ticker := time.NewTicker(displayPollInterval)
	defer ticker.Stop()

	if d.interactive {
		fmt.Fprint(d.out, "Waiting for data...")
	}

	for {
		select {
		case <-ctx.Done():
			if d.interactive {
				fmt.Fprintln(d.out)
			}
			return
		case <-ticker.C:
			for {
				ev, ok := d.bus.TryNext()
				if !ok {
					break
				}
				d.render(ev)
			}
		}
	}
}

func (d *display) render(ev bus.Event) {
	if ev.IsSample() {
		reading := bpmColor(ev.Sample.BPM).Sprintf("%d bpm", ev.Sample.BPM)
		if d.interactive {
			fmt.Fprintf(d.out, "%sHeart Rate: %s", clearLineSequence, reading)
		} else {
			fmt.Fprintf(d.out, "%s  heart_rate=%d\n", ev.Sample.ObservedAt.Format(time.RFC3339), ev.Sample.BPM)
		}
		return
	}

	if d.interactive {
		fmt.Fprintf(d.out, "%s%s\n", clearLineSequence, ev.Message)
	} else {
		fmt.Fprintln(d.out, ev.Message)
	}
}

// bpmColor buckets a reading into resting, normal, elevated and high bands.
func bpmColor(bpm uint16) *color.Color {
	switch {
	case bpm < 60:
		return restingColor
	case bpm < 100:
		return normalColor
	case bpm < 140:
		return elevatedColor
	default:
		return highColor
	}
}
