package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sdejongh/syncnorris/pkg/engine"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// treeDifference is one non-equal item surfaced by WriteDifferencesReport,
// the engine-backed counterpart of the legacy flat-diff FileDifference.
type treeDifference struct {
	RelPath string `json:"rel_path"`
	Op      string `json:"op"`
}

// WriteDifferencesReport writes every non-equal item of base's
// comparison tree to filepath (human or json). An empty filepath
// writes to stdout instead of skipping the report, since the CLI only
// calls this once a report was actually requested.
func WriteDifferencesReport(base *tree.BaseFolderPair, filepath string, format string) error {
	diffs := collectTreeDifferences(base)

	var w io.Writer = os.Stdout
	if filepath != "" {
		file, err := os.Create(filepath)
		if err != nil {
			return fmt.Errorf("failed to create differences file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if format == "json" {
		return writeTreeDifferencesJSON(base, diffs, w)
	}
	return writeTreeDifferencesHuman(base, diffs, w)
}

func collectTreeDifferences(base *tree.BaseFolderPair) []treeDifference {
	var diffs []treeDifference
	walkTreeDifferences(&base.FolderPair, &diffs)
	return diffs
}

type opItem interface {
	Op() models.SyncOperation
	RelPath() string
}

func walkTreeDifferences(f *tree.FolderPair, diffs *[]treeDifference) {
	for _, file := range f.Files {
		bumpDifference(file, diffs)
	}
	for _, link := range f.Symlinks {
		bumpDifference(link, diffs)
	}
	for _, sub := range f.Folders {
		bumpDifference(sub, diffs)
		walkTreeDifferences(sub, diffs)
	}
}

func bumpDifference(it opItem, diffs *[]treeDifference) {
	switch it.Op() {
	case models.OpDoNothing, models.OpEqual:
		return
	default:
		*diffs = append(*diffs, treeDifference{RelPath: it.RelPath(), Op: it.Op().String()})
	}
}

func writeTreeDifferencesHuman(base *tree.BaseFolderPair, diffs []treeDifference, w io.Writer) error {
	fmt.Fprintf(w, "Differences Report\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Left:  %s\n", base.LeftPath)
	fmt.Fprintf(w, "Right: %s\n", base.RightPath)
	fmt.Fprintf(w, "Direction: %s\n\n", base.Config.DirectionVariant)
	fmt.Fprintf(w, "Total Differences: %d\n\n", len(diffs))

	for _, d := range diffs {
		fmt.Fprintf(w, "  %-24s %s\n", d.Op, d.RelPath)
	}
	return nil
}

func writeTreeDifferencesJSON(base *tree.BaseFolderPair, diffs []treeDifference, w io.Writer) error {
	out := struct {
		Generated   string                  `json:"generated"`
		LeftPath    string                  `json:"left_path"`
		RightPath   string                  `json:"right_path"`
		Direction   models.DirectionVariant `json:"direction"`
		TotalCount  int                     `json:"total_count"`
		Differences []treeDifference        `json:"differences"`
	}{
		Generated:   time.Now().Format(time.RFC3339),
		LeftPath:    base.LeftPath,
		RightPath:   base.RightPath,
		Direction:   base.Config.DirectionVariant,
		TotalCount:  len(diffs),
		Differences: diffs,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// WriteRunReportJSON writes a driver run report as JSON, the --output
// json counterpart of PrintRunReport's human-readable rendering.
func WriteRunReportJSON(w io.Writer, report *engine.RunReport) error {
	type pairJSON struct {
		LeftPath        string   `json:"left_path"`
		RightPath       string   `json:"right_path"`
		Status          string   `json:"status"`
		Error           string   `json:"error,omitempty"`
		Warnings        []string `json:"warnings,omitempty"`
		ModTimeWarnings []string `json:"mod_time_warnings,omitempty"`
	}

	out := struct {
		Status   models.SyncStatus `json:"status"`
		Duration string            `json:"duration"`
		Pairs    []pairJSON        `json:"pairs"`
		Warnings []string          `json:"warnings,omitempty"`
	}{
		Status:   report.Status,
		Duration: report.EndTime.Sub(report.StartTime).String(),
		Warnings: report.Warnings,
	}

	for _, pr := range report.Pairs {
		pj := pairJSON{
			LeftPath:  pr.LeftPath,
			RightPath: pr.RightPath,
			Status:    fmt.Sprint(pr.Status),
			Warnings:  pr.Warnings,
		}
		if pr.Err != nil {
			pj.Error = pr.Err.Error()
		}
		for _, mw := range pr.ModTimeWarnings {
			pj.ModTimeWarnings = append(pj.ModTimeWarnings, mw.Error())
		}
		out.Pairs = append(out.Pairs, pj)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
