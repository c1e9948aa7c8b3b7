package output

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/syncnorris/pkg/actor"
	"github.com/sdejongh/syncnorris/pkg/engine"
)

// EngineFormatter renders one folder pair sync's live progress as a
// pair of progress bars (items, bytes) and prints the driver's final
// report once every pair has run. Unlike HumanFormatter/JSONFormatter,
// which summarize a completed flat-diff sync, this formatter drives
// the engine's actor.Callback contract directly, since the engine
// reports progress as accumulated deltas rather than per-file events.
type EngineFormatter struct {
	writer    io.Writer
	itemsBar  *pb.ProgressBar
	bytesBar  *pb.ProgressBar
	pool      *pb.Pool
	lastError string
}

// NewEngineFormatter creates a formatter that writes its progress bars
// to w.
func NewEngineFormatter(w io.Writer) *EngineFormatter {
	return &EngineFormatter{writer: w}
}

// StartPass begins one pass's progress display given its known item
// and byte totals (0 is a valid "unknown yet" total; the bars grow as
// UpdateDataTotal reports more).
func (f *EngineFormatter) StartPass(label string, totalItems, totalBytes int64) error {
	f.itemsBar = pb.New64(totalItems)
	f.itemsBar.Set("prefix", label+" items ")
	f.bytesBar = pb.New64(totalBytes)
	f.bytesBar.Set(pb.Bytes, true)
	f.bytesBar.Set("prefix", label+" data  ")

	pool, err := pb.StartPool(f.itemsBar, f.bytesBar)
	if err != nil {
		return fmt.Errorf("starting progress pool: %w", err)
	}
	f.pool = pool
	return nil
}

// FinishPass stops the progress bars started by StartPass.
func (f *EngineFormatter) FinishPass() {
	if f.pool != nil {
		f.pool.Stop()
		f.pool = nil
	}
}

// ReportStatus implements actor.Callback; the engine's per-thread
// status text is folded into the items bar's current message.
func (f *EngineFormatter) ReportStatus(text string) {
	if f.itemsBar != nil {
		f.itemsBar.Set("status", text)
	}
}

// UpdateDataProcessed implements actor.Callback.
func (f *EngineFormatter) UpdateDataProcessed(items, bytes int64) {
	if f.itemsBar != nil {
		f.itemsBar.Add64(items)
	}
	if f.bytesBar != nil {
		f.bytesBar.Add64(bytes)
	}
}

// UpdateDataTotal implements actor.Callback.
func (f *EngineFormatter) UpdateDataTotal(items, bytes int64) {
	if f.itemsBar != nil {
		f.itemsBar.SetTotal(f.itemsBar.Total() + items)
	}
	if f.bytesBar != nil {
		f.bytesBar.SetTotal(f.bytesBar.Total() + bytes)
	}
}

// LogInfo implements actor.Callback by writing a line above the bars.
func (f *EngineFormatter) LogInfo(text string) {
	if f.writer != nil {
		fmt.Fprintln(f.writer, text)
	}
}

// ReportError implements actor.Callback: every reported error is
// recorded and ignored, matching the driver's own best-effort
// cleanup posture (spec.md §9's catch-all).
func (f *EngineFormatter) ReportError(text string, retryCount int) actor.Decision {
	f.lastError = text
	return actor.DecisionIgnore
}

var _ actor.Callback = (*EngineFormatter)(nil)

// PrintRunReport writes a driver run's per-pair outcome and run-wide
// warnings once every configured pair has gone through pre-flight and
// (if applicable) execution.
func PrintRunReport(w io.Writer, report *engine.RunReport) {
	fmt.Fprintf(w, "sync run: %s (%s)\n", report.Status, report.EndTime.Sub(report.StartTime))
	for _, pr := range report.Pairs {
		fmt.Fprintf(w, "  %s <-> %s: %s\n", pr.LeftPath, pr.RightPath, pr.Status)
		if pr.Err != nil {
			fmt.Fprintf(w, "    error: %v\n", pr.Err)
		}
		for _, w2 := range pr.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", w2)
		}
		for _, mw := range pr.ModTimeWarnings {
			fmt.Fprintf(w, "    mod-time warning: %v\n", mw)
		}
	}
	for _, w3 := range report.Warnings {
		fmt.Fprintf(w, "warning: %s\n", w3)
	}
}
