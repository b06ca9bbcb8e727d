package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/nao1215/sitemirror/internal/event"
)

var (
	stepColor  = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	faintColor = color.New(color.Faint)
)

var _ event.Emitter = (*progressPrinter)(nil)

// progressPrinter prints job events as they arrive. Per-file events are
// only printed in verbose mode.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	discovered int
	downloaded int
	rewritten  int
	failures   int
}

func newProgressPrinter(out io.Writer, verbose bool) *progressPrinter {
	return &progressPrinter{out: out, verbose: verbose}
}

// Emit implements event.Emitter.
func (p *progressPrinter) Emit(ev event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch params := ev.Params.(type) {
	case event.Progress:
		stepColor.Fprintf(p.out, "[%d/%d] ", params.ScannedCount, params.URLSize)
		fmt.Fprintln(p.out, params.URL)
	case event.ScanSummary:
		okColor.Fprintf(p.out, "Crawl finished: %d pages known, %d resources found\n",
			params.ScannedSize, p.discovered)
	case event.FileCount:
		p.printPhase(ev.Channel, params.FileCount)
	case event.FileRef:
		p.printFile(ev.Channel, params)
	case event.Failure:
		p.failures++
		where := params.Stage
		if params.URL != "" {
			where += " " + params.URL
		}
		errorColor.Fprintf(p.out, "  x %s: %s\n", where, params.Message)
	default:
		switch ev.Channel {
		case event.AddURL:
			p.discovered++
		case event.Stop:
			warnColor.Fprintln(p.out, "Mirror job stopped")
		}
	}
}

func (p *progressPrinter) printPhase(ch event.Channel, count int) {
	switch ch {
	case event.Downloading:
		stepColor.Fprintf(p.out, "Downloading %d resources...\n", count)
	case event.Downloaded:
		okColor.Fprintf(p.out, "Download finished: %d/%d\n", p.downloaded, count)
	case event.Changing:
		stepColor.Fprintf(p.out, "Rewriting references in %d resources...\n", count)
	case event.Changed:
		okColor.Fprintf(p.out, "Rewrite finished: %d files changed\n", p.rewritten)
	}
}

func (p *progressPrinter) printFile(ch event.Channel, ref event.FileRef) {
	switch ch {
	case event.DownloadFile:
		p.downloaded++
		if p.verbose {
			faintColor.Fprintf(p.out, "  saved %s\n", ref.LocalPath)
		}
	case event.ReplacedFile:
		p.rewritten++
		if p.verbose {
			faintColor.Fprintf(p.out, "  rewrote %s\n", ref.URL)
		}
	}
}

// Failures returns the number of error events seen.
func (p *progressPrinter) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}
