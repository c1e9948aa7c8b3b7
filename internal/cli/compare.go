package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sdejongh/syncnorris/pkg/compare"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/output"
	"github.com/sdejongh/syncnorris/pkg/stats"
	"github.com/sdejongh/syncnorris/pkg/storage"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare folders without syncing (dry-run)",
		Long: `Compare source and destination folders and report differences
without performing any file operations. This is equivalent to sync --dry-run.`,
		RunE: runCompare,
	}

	// Reuse sync flags for comparison
	cmd.Flags().StringVarP(&syncFlags.Source, "source", "s", "", "source directory path (required)")
	cmd.Flags().StringVarP(&syncFlags.Dest, "dest", "d", "", "destination directory path (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("dest")

	cmd.Flags().StringVar(&syncFlags.Comparison, "comparison", "hash", "comparison method: namesize, md5, binary, hash")
	cmd.Flags().StringSliceVar(&syncFlags.Exclude, "exclude", []string{}, "glob patterns to exclude")
	cmd.Flags().StringVarP(&syncFlags.Output, "output", "o", "human", "output format: human, json")
	cmd.Flags().StringVar(&syncFlags.DiffReport, "diff-report", "", "write differences report to file")
	cmd.Flags().StringVar(&syncFlags.DiffFormat, "diff-format", "human", "differences report format: human, json")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate flags
	if err := validateSyncFlags(); err != nil {
		return err
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	applyFlagsToConfig(cfg)

	// Force dry-run mode for compare command
	syncFlags.DryRun = true

	// Create sync operation (with dry-run enabled)
	operation, err := createSyncOperation(cfg)
	if err != nil {
		return fmt.Errorf("failed to create sync operation: %w", err)
	}

	// Create storage backends
	source, err := storage.NewLocal(syncFlags.Source)
	if err != nil {
		return fmt.Errorf("failed to create source backend: %w", err)
	}
	defer source.Close()

	dest, err := storage.NewLocal(syncFlags.Dest)
	if err != nil {
		return fmt.Errorf("failed to create destination backend: %w", err)
	}
	defer dest.Close()

	// Create comparator
	var comparator compare.Comparator
	switch operation.ComparisonMethod {
	case models.CompareNameSize:
		// Fast: name+size only, no hash verification
		comparator = compare.NewCompositeComparator(false, cfg.Performance.BufferSize)

	case models.CompareHash:
		// Secure: SHA-256 hash comparison
		comparator = compare.NewCompositeComparator(true, cfg.Performance.BufferSize)

	case models.CompareMD5:
		// Fast hash: MD5 comparison
		comparator = compare.NewMD5Comparator(cfg.Performance.BufferSize)

	case models.CompareBinary:
		// Thorough: byte-by-byte comparison
		comparator = compare.NewBinaryComparator(cfg.Performance.BufferSize)

	default:
		return fmt.Errorf("unsupported comparison method: %s (use: namesize, md5, binary, hash)", operation.ComparisonMethod)
	}

	pairCfg := tree.FolderPairConfig{
		DirectionVariant: models.DirectionTwoWay,
		HandleDeletion:   models.DeletionPermanent,
	}

	treeBase, err := compare.BuildTree(ctx, source, dest, syncFlags.Source, syncFlags.Dest, pairCfg, comparator, operation.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	result := stats.Compute(treeBase)

	switch syncFlags.Output {
	case "json":
		if err := output.WriteDifferencesReport(treeBase, "", "json"); err != nil {
			return fmt.Errorf("failed to print comparison: %w", err)
		}
	default:
		fmt.Printf("comparing %s <-> %s\n", syncFlags.Source, syncFlags.Dest)
		fmt.Printf("  create left: %d  create right: %d\n", result.CreateLeft, result.CreateRight)
		fmt.Printf("  update left: %d  update right: %d\n", result.UpdateLeft, result.UpdateRight)
		fmt.Printf("  delete left: %d  delete right: %d\n", result.DeleteLeft, result.DeleteRight)
		fmt.Printf("  bytes to process: %d\n", result.BytesToProcess)
		if len(result.Conflicts) > 0 {
			fmt.Printf("  unresolved conflicts: %d\n", len(result.Conflicts))
		}
	}

	// Write differences report if requested
	if syncFlags.DiffReport != "" {
		if err := output.WriteDifferencesReport(treeBase, syncFlags.DiffReport, syncFlags.DiffFormat); err != nil {
			return fmt.Errorf("failed to write differences report: %w", err)
		}
	}

	status := models.StatusSuccess
	if len(result.Conflicts) > 0 {
		status = models.StatusPartial
	}
	os.Exit(status.ExitCode())
	return nil
}
