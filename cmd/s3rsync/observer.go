package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/s3rsync/s3rsync/internal/sync"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

// consoleObserver renders per-file progress and the end-of-run summary.
// Observer callbacks arrive from a single goroutine, so no locking is needed.
type consoleObserver struct {
	start time.Time
}

func newConsoleObserver() *consoleObserver {
	return &consoleObserver{start: time.Now()}
}

func (c *consoleObserver) PrintPlan(plan *sync.SyncPlan) {
	fmt.Println("scan result")
	fmt.Printf("  scanned      %s files\n", humanize.Comma(int64(plan.TotalScanned)))
	fmt.Printf("  to upload    %s\n", yellow(fmt.Sprintf("↑ %s files", humanize.Comma(int64(plan.ToUpload)))))
	fmt.Printf("  to download  %s\n", yellow(fmt.Sprintf("↓ %s files", humanize.Comma(int64(plan.ToDownload)))))
	if plan.ToUpload+plan.ToDownload == 0 {
		fmt.Println(green("nothing to sync"))
	}
}

func (c *consoleObserver) Observe(op sync.Operation, relPath string) {
	switch op {
	case sync.OpUpload:
		fmt.Printf("%s %s\n", green("↑"), relPath)
	case sync.OpDownload:
		fmt.Printf("%s %s\n", cyan("↓"), relPath)
	case sync.OpSkip:
		// skipped files are only visible in the summary
	case sync.OpFail:
		fmt.Printf("%s %s\n", red("×"), relPath)
	}
}

func (c *consoleObserver) PrintSummary(stats *sync.SyncStats) {
	elapsed := time.Since(c.start)

	fmt.Println("sync complete")
	fmt.Printf("  uploaded    %s\n", green(humanize.Comma(int64(stats.Uploaded))))
	fmt.Printf("  downloaded  %s\n", green(humanize.Comma(int64(stats.Downloaded))))
	fmt.Printf("  skipped     %s\n", yellow(humanize.Comma(int64(stats.Skipped))))
	if stats.Failed > 0 {
		fmt.Printf("  failed      %s\n", red(humanize.Comma(int64(stats.Failed))))
	}
	fmt.Printf("  took        %.1fs\n", elapsed.Seconds())
}
