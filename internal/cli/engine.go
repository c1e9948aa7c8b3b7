package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sdejongh/syncnorris/pkg/afs"
	"github.com/sdejongh/syncnorris/pkg/compare"
	"github.com/sdejongh/syncnorris/pkg/config"
	"github.com/sdejongh/syncnorris/pkg/engine"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/output"
	"github.com/sdejongh/syncnorris/pkg/storage"
	"github.com/sdejongh/syncnorris/pkg/syncstate"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// EngineFlags holds the engine command's own flags, distinct from the
// legacy flat sync/compare commands' SyncFlags.
type EngineFlags struct {
	ConfigFile string
	DryRun     bool
}

var engineFlags EngineFlags

// NewEngineCommand creates the engine command: a YAML-config-driven,
// multi-pass folder pair synchronizer, as opposed to the single-pair
// flat sync/compare commands above.
func NewEngineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Run the multi-pass synchronization engine over configured folder pairs",
		Long: `Run the multi-pass synchronization engine: a work-stealing pre-flight and
execute loop over every folder pair listed in the engine section of the
configuration file, supporting two-way, mirror, update and custom
direction policies with permanent, recycler or versioning deletion.`,
		RunE: runEngine,
	}

	cmd.Flags().StringVarP(&engineFlags.ConfigFile, "config", "c", "", "engine configuration file (default is $HOME/.config/syncnorris/config.yaml)")
	cmd.Flags().BoolVar(&engineFlags.DryRun, "dry-run", false, "build the comparison trees and run pre-flight checks, but do not execute")

	return cmd
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.Engine.Pairs) == 0 {
		return fmt.Errorf("no folder pairs configured under engine.pairs")
	}

	logger, err := createLogger(cfg.Logging.File, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	pairs := make([]*engine.Pair, 0, len(cfg.Engine.Pairs))
	for _, pc := range cfg.Engine.Pairs {
		pair, err := buildEnginePair(ctx, pc, cfg)
		if err != nil {
			return fmt.Errorf("folder pair %s <-> %s: %w", pc.LeftPath, pc.RightPath, err)
		}
		pairs = append(pairs, pair)
	}

	if engineFlags.DryRun {
		for _, p := range pairs {
			if err := output.WriteDifferencesReport(p.Base, "", "human"); err != nil {
				return err
			}
		}
		return nil
	}

	driverOpts := engine.DriverOptions{
		ParallelOpsByDevice:       cfg.Engine.ParallelOpsByDevice,
		Logger:                    logger,
		StateStore:                syncstate.New(cfg.Engine.StateDir),
		WarnSignificantDifference: cfg.Engine.Warnings.SignificantDifference,
		WarnDependentBaseFolders:  cfg.Engine.Warnings.DependentBaseFolders,
		WarnRecyclerDowngrade:     cfg.Engine.Warnings.RecyclerDowngrade,
		WarnVersioningInsideBase:  cfg.Engine.Warnings.VersioningInsideBase,
	}

	engineCallback := output.NewEngineFormatter(os.Stdout)
	if err := engineCallback.StartPass("engine", 0, 0); err == nil {
		defer engineCallback.FinishPass()
		driverOpts.Callback = engineCallback
	}

	driver := engine.NewDriver(driverOpts)

	report, err := driver.Run(ctx, pairs)
	if err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}

	output.PrintRunReport(os.Stdout, report)
	os.Exit(report.Status.ExitCode())
	return nil
}

// buildEnginePair scans both sides of one configured pair through
// pkg/compare and wires the result into a pkg/engine.Pair ready for
// Driver.Run.
func buildEnginePair(ctx context.Context, pc config.FolderPairConfig, cfg *config.Config) (*engine.Pair, error) {
	left, err := storage.NewLocal(pc.LeftPath)
	if err != nil {
		return nil, fmt.Errorf("left backend: %w", err)
	}
	defer left.Close()

	right, err := storage.NewLocal(pc.RightPath)
	if err != nil {
		return nil, fmt.Errorf("right backend: %w", err)
	}
	defer right.Close()

	comparator, err := comparatorFor(pc.Comparison, cfg.Performance.BufferSize)
	if err != nil {
		return nil, err
	}

	excludes := pc.Exclude
	if len(excludes) == 0 {
		excludes = cfg.Exclude
	}

	treeCfg := tree.FolderPairConfig{
		DetectMovedFiles:       pc.DetectMovedFiles,
		HandleDeletion:         pc.Deletion.Policy,
		VersioningStyle:        pc.Deletion.VersioningStyle,
		VersioningFolderPhrase: pc.Deletion.VersioningFolderPhrase,
		DirectionVariant:       pc.Direction,
		SaveSyncDB:             pc.SaveSyncDB,
	}

	base, err := compare.BuildTree(ctx, left, right, pc.LeftPath, pc.RightPath, treeCfg, comparator, excludes)
	if err != nil {
		return nil, fmt.Errorf("build comparison tree: %w", err)
	}

	return &engine.Pair{
		Base:         base,
		LeftBackend:  afs.NewLocal(),
		RightBackend: afs.NewLocal(),
		LeftDevice:   pc.LeftDevice,
		RightDevice:  pc.RightDevice,
	}, nil
}

func comparatorFor(method models.ComparisonMethod, bufferSize int) (compare.Comparator, error) {
	switch method {
	case "", models.CompareHash:
		return compare.NewCompositeComparator(true, bufferSize), nil
	case models.CompareNameSize:
		return compare.NewCompositeComparator(false, bufferSize), nil
	case models.CompareMD5:
		return compare.NewMD5Comparator(bufferSize), nil
	case models.CompareBinary:
		return compare.NewBinaryComparator(bufferSize), nil
	case models.CompareTimestamp:
		return compare.NewTimestampComparator(), nil
	default:
		return nil, fmt.Errorf("unsupported comparison method: %s", method)
	}
}

func loadEngineConfig() (*config.Config, error) {
	path := engineFlags.ConfigFile
	if path == "" {
		path = globalFlags.ConfigFile
	}
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.LoadDefault()
}
