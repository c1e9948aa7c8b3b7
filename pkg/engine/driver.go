package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sdejongh/syncnorris/pkg/actor"
	"github.com/sdejongh/syncnorris/pkg/afs"
	"github.com/sdejongh/syncnorris/pkg/deletion"
	"github.com/sdejongh/syncnorris/pkg/logging"
	"github.com/sdejongh/syncnorris/pkg/models"
	"github.com/sdejongh/syncnorris/pkg/stats"
	"github.com/sdejongh/syncnorris/pkg/tree"
)

// Pair bundles one configured folder pair with the backends that serve
// its two sides and the device keys used to look up per-device
// parallelism (spec.md §4.7's "per-device parallelism map").
type Pair struct {
	Base         *tree.BaseFolderPair
	LeftBackend  afs.Backend
	RightBackend afs.Backend
	LeftDevice   string
	RightDevice  string
}

// pairStatus is the pre-flight loop's verdict for one pair.
type pairStatus int

const (
	statusPending pairStatus = iota
	statusSkip
	statusAlreadyInSync
	statusFatal
	statusSynced
)

func (s pairStatus) String() string {
	switch s {
	case statusSkip:
		return "skipped (equal base paths)"
	case statusAlreadyInSync:
		return "already in sync"
	case statusFatal:
		return "fatal"
	case statusSynced:
		return "synced"
	default:
		return "pending"
	}
}

// pairState carries the pre-flight loop's working state for one pair
// into the execute loop.
type pairState struct {
	pair                *Pair
	status              pairStatus
	fatalErr            error
	stats               stats.Result
	recyclerLeftOK      bool
	recyclerRightOK     bool
	recyclerLeftProbed  bool
	recyclerRightProbed bool
}

// SyncStateStore is the synchronous-state database hook: the driver
// calls Save once per pair, after its three passes finish, when that
// pair's configuration asks for it. pkg/syncstate implements this
// against a JSON snapshot file; a nil StateStore simply disables the
// hook.
type SyncStateStore interface {
	Save(ctx context.Context, base *tree.BaseFolderPair) error
}

// DriverOptions carries the run-wide settings spec.md §4.7 lists as
// driver inputs, beyond the per-pair sync flags already in Options.
type DriverOptions struct {
	SyncOptions Options

	// StateStore persists a pair's post-sync snapshot when its
	// SaveSyncDB flag is set. Nil disables the hook entirely.
	StateStore SyncStateStore

	// ParallelOpsByDevice maps a device key (as set on Pair.LeftDevice/
	// RightDevice) to its configured worker-thread count. A missing key
	// defaults to 1.
	ParallelOpsByDevice map[string]int

	// FolderAccessTimeout bounds the base-folder availability probes
	// spec.md §4.7/§5 calls out as the driver's only timeout surface.
	FolderAccessTimeout time.Duration

	WarnSignificantDifference bool
	WarnDependentBaseFolders  bool
	WarnRecyclerDowngrade     bool
	WarnVersioningInsideBase  bool

	Logger logging.Logger

	// Callback receives every pair's per-pass progress/status/error
	// reports, forwarded unchanged to each pair's FolderPairSyncer.
	Callback actor.Callback
}

func (o DriverOptions) withDefaults() DriverOptions {
	if o.FolderAccessTimeout <= 0 {
		o.FolderAccessTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNullLogger()
	}
	return o
}

func (o DriverOptions) parallelOps(device string) int {
	if n, ok := o.ParallelOpsByDevice[device]; ok && n > 0 {
		return n
	}
	return 1
}

// PairReport summarizes one pair's outcome for RunReport.
type PairReport struct {
	LeftPath, RightPath string
	Status               pairStatus
	Warnings             []string
	Stats                stats.Result
	Err                  error
	ModTimeWarnings      []error
	IgnoredErrors        []error
}

// RunReport is Driver.Run's aggregated result across every pair.
type RunReport struct {
	Status       models.SyncStatus
	Pairs        []PairReport
	Warnings     []string
	StartTime    time.Time
	EndTime      time.Time
}

// Driver implements spec.md §4.7: a pre-flight validation loop over
// every configured pair followed by an execute loop that constructs
// each pair's deletion handlers and syncer and runs its three passes.
type Driver struct {
	opts DriverOptions
}

// NewDriver constructs a driver for one invocation.
func NewDriver(opts DriverOptions) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

// Run executes the full pre-flight + execute lifecycle over pairs.
func (d *Driver) Run(ctx context.Context, pairs []*Pair) (*RunReport, error) {
	report := &RunReport{StartTime: time.Now(), Status: models.StatusSuccess}

	states := d.preflight(ctx, pairs, report)

	for _, st := range states {
		pr := PairReport{
			LeftPath:  st.pair.Base.LeftPath,
			RightPath: st.pair.Base.RightPath,
			Status:    st.status,
			Stats:     st.stats,
		}

		switch st.status {
		case statusFatal:
			pr.Err = st.fatalErr
			report.Status = models.StatusFailed
			report.Pairs = append(report.Pairs, pr)
			continue
		case statusSkip, statusAlreadyInSync:
			report.Pairs = append(report.Pairs, pr)
			continue
		}

		if err := d.executePair(ctx, st, &pr); err != nil {
			pr.Err = err
			if report.Status == models.StatusSuccess {
				report.Status = models.StatusPartial
			}
		} else {
			pr.Status = statusSynced
		}
		report.Pairs = append(report.Pairs, pr)
	}

	report.EndTime = time.Now()
	if ctx.Err() != nil {
		report.Status = models.StatusCancelled
	}
	return report, nil
}

// preflight implements spec.md §4.7 step 3: one pass over every pair
// that marks SKIP/ALREADY_IN_SYNC/FATAL outcomes and emits warning
// buckets, without touching the filesystem beyond read-only probes.
func (d *Driver) preflight(ctx context.Context, pairs []*Pair, report *RunReport) []*pairState {
	states := make([]*pairState, 0, len(pairs))

	var significant bool
	var diskShortfalls []string
	var conflicts []string
	var versioningViolations []string

	for _, p := range pairs {
		st := &pairState{pair: p}
		states = append(states, st)

		if p.Base.LeftPath == p.Base.RightPath {
			st.status = statusSkip
			continue
		}

		st.stats = stats.Compute(p.Base)
		if st.stats.AlreadyInSync() {
			st.status = statusAlreadyInSync
			continue
		}

		if err := d.validateNullPaths(p, st.stats); err != nil {
			st.status = statusFatal
			st.fatalErr = err
			continue
		}

		if err := d.validateSourcesPresent(ctx, p, st.stats); err != nil {
			st.status = statusFatal
			st.fatalErr = err
			continue
		}

		if p.Base.Config.HandleDeletion == models.DeletionVersioning && strings.TrimSpace(p.Base.Config.VersioningFolderPhrase) == "" {
			st.status = statusFatal
			st.fatalErr = fmt.Errorf("base folder pair %s <-> %s: versioning policy requires a versioning folder", p.Base.LeftPath, p.Base.RightPath)
			continue
		}

		for _, c := range st.stats.Conflicts {
			conflicts = append(conflicts, fmt.Sprintf("%s <-> %s: %s (%s)", p.Base.LeftPath, p.Base.RightPath, c.RelPath, c.Message))
		}

		if d.opts.WarnSignificantDifference && st.stats.SignificantDifference() {
			significant = true
		}

		if shortfall := d.diskSpaceShortfall(ctx, p, st.stats); shortfall != "" {
			diskShortfalls = append(diskShortfalls, shortfall)
		}

		if st.stats.PhysicalDeleteLeft {
			st.recyclerLeftProbed = true
			st.recyclerLeftOK = d.recyclerAvailable(ctx, p.LeftBackend, p.Base.LeftPath)
		}
		if st.stats.PhysicalDeleteRight {
			st.recyclerRightProbed = true
			st.recyclerRightOK = d.recyclerAvailable(ctx, p.RightBackend, p.Base.RightPath)
		}

		if d.opts.WarnVersioningInsideBase && p.Base.Config.HandleDeletion == models.DeletionVersioning {
			if v := d.versioningInsideBase(p); v != "" {
				versioningViolations = append(versioningViolations, v)
			}
		}

		st.status = statusPending
	}

	if d.opts.WarnDependentBaseFolders {
		if dep := dependentBaseFolders(pairs); len(dep) > 0 {
			report.Warnings = append(report.Warnings, "some files will be synchronized as part of multiple base folders: "+strings.Join(dep, "; "))
		}
	}

	if len(conflicts) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d unresolved conflict(s): %s", len(conflicts), strings.Join(conflicts, "; ")))
	}
	if significant {
		report.Warnings = append(report.Warnings, "one or more base folder pairs show a significant difference between sides")
	}
	if len(diskShortfalls) > 0 {
		report.Warnings = append(report.Warnings, "insufficient free disk space: "+strings.Join(diskShortfalls, "; "))
	}
	if d.opts.WarnRecyclerDowngrade {
		for _, st := range states {
			if st.recyclerLeftProbed && !st.recyclerLeftOK {
				report.Warnings = append(report.Warnings, fmt.Sprintf("recycle bin unavailable for %s, falling back to permanent deletion", st.pair.Base.LeftPath))
			}
			if st.recyclerRightProbed && !st.recyclerRightOK {
				report.Warnings = append(report.Warnings, fmt.Sprintf("recycle bin unavailable for %s, falling back to permanent deletion", st.pair.Base.RightPath))
			}
		}
	}
	if len(versioningViolations) > 0 {
		report.Warnings = append(report.Warnings, "versioning folder lies inside a base folder: "+strings.Join(versioningViolations, "; "))
	}

	return states
}

func (d *Driver) validateNullPaths(p *Pair, r stats.Result) error {
	leftWrites := r.CreateLeft+r.UpdateLeft+r.DeleteLeft > 0
	rightWrites := r.CreateRight+r.UpdateRight+r.DeleteRight > 0
	if p.LeftBackend.IsNullPath(p.Base.LeftPath) && (leftWrites || p.Base.Config.SaveSyncDB) {
		return fmt.Errorf("base folder pair %s <-> %s: left side has no path configured but writes or a database save were requested", p.Base.LeftPath, p.Base.RightPath)
	}
	if p.RightBackend.IsNullPath(p.Base.RightPath) && (rightWrites || p.Base.Config.SaveSyncDB) {
		return fmt.Errorf("base folder pair %s <-> %s: right side has no path configured but writes or a database save were requested", p.Base.LeftPath, p.Base.RightPath)
	}
	return nil
}

// validateSourcesPresent guards against the data-loss scenario spec.md
// §4.7 flags: deletions scheduled on one side whose source (the other
// side, which drove the comparison) no longer exists at all.
func (d *Driver) validateSourcesPresent(ctx context.Context, p *Pair, r stats.Result) error {
	if r.PhysicalDeleteLeft {
		if _, ok, err := p.RightBackend.GetItemTypeIfExists(ctx, p.Base.RightPath); err == nil && !ok {
			return fmt.Errorf("base folder pair %s <-> %s: right side vanished but left-side deletions were scheduled", p.Base.LeftPath, p.Base.RightPath)
		}
	}
	if r.PhysicalDeleteRight {
		if _, ok, err := p.LeftBackend.GetItemTypeIfExists(ctx, p.Base.LeftPath); err == nil && !ok {
			return fmt.Errorf("base folder pair %s <-> %s: left side vanished but right-side deletions were scheduled", p.Base.LeftPath, p.Base.RightPath)
		}
	}
	return nil
}

func (d *Driver) diskSpaceShortfall(ctx context.Context, p *Pair, r stats.Result) string {
	var shortfalls []string
	if r.DiskSpaceLeft > 0 {
		if free, err := p.LeftBackend.GetFreeDiskSpace(ctx, p.Base.LeftPath); err == nil && free > 0 && free < r.DiskSpaceLeft {
			shortfalls = append(shortfalls, fmt.Sprintf("%s needs %d more bytes than the %d available", p.Base.LeftPath, r.DiskSpaceLeft, free))
		}
	}
	if r.DiskSpaceRight > 0 {
		if free, err := p.RightBackend.GetFreeDiskSpace(ctx, p.Base.RightPath); err == nil && free > 0 && free < r.DiskSpaceRight {
			shortfalls = append(shortfalls, fmt.Sprintf("%s needs %d more bytes than the %d available", p.Base.RightPath, r.DiskSpaceRight, free))
		}
	}
	return strings.Join(shortfalls, "; ")
}

func (d *Driver) recyclerAvailable(ctx context.Context, backend afs.Backend, path string) bool {
	if backend == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, d.opts.FolderAccessTimeout)
	defer cancel()
	ok, err := backend.SupportsRecycleBin(probeCtx, path, func() {})
	return err == nil && ok
}

// versioningInsideBase reports a non-empty description when the
// configured versioning folder lies inside either base path of p.
func (d *Driver) versioningInsideBase(p *Pair) string {
	versioningPath := p.Base.Config.VersioningFolderPhrase
	if versioningPath == "" {
		return ""
	}
	if isWithin(p.Base.LeftPath, versioningPath) || isWithin(p.Base.RightPath, versioningPath) {
		return fmt.Sprintf("%s (base %s/%s)", versioningPath, p.Base.LeftPath, p.Base.RightPath)
	}
	return ""
}

// dependentBaseFolders finds any pair whose base path is nested inside
// another pair's base path on the same side, the "writes as part of
// multiple base folders" scenario spec.md §4.7 warns about once.
func dependentBaseFolders(pairs []*Pair) []string {
	var out []string
	for i, a := range pairs {
		for j, b := range pairs {
			if i == j {
				continue
			}
			if isWithin(a.Base.LeftPath, b.Base.LeftPath) || isWithin(a.Base.RightPath, b.Base.RightPath) {
				out = append(out, fmt.Sprintf("%s/%s inside %s/%s", a.Base.LeftPath, a.Base.RightPath, b.Base.LeftPath, b.Base.RightPath))
			}
		}
	}
	return out
}

// isWithin reports whether candidate is a strict descendant of base.
func isWithin(base, candidate string) bool {
	if base == "" || candidate == "" || base == candidate {
		return false
	}
	rel, err := filepath.Rel(base, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// executePair implements spec.md §4.7 step 4 for one pre-flight-passed
// pair: base-folder creation, deletion-policy downgrade, handler
// construction, thread-count determination, the three-pass run, and
// best-effort cleanup.
func (d *Driver) executePair(ctx context.Context, st *pairState, pr *PairReport) error {
	p := st.pair

	if err := d.ensureAvailable(ctx, p); err != nil {
		return err
	}

	hasWrites := st.stats.CreateLeft+st.stats.UpdateLeft+st.stats.DeleteLeft+
		st.stats.CreateRight+st.stats.UpdateRight+st.stats.DeleteRight > 0
	if hasWrites || p.Base.Config.SaveSyncDB {
		if err := p.LeftBackend.CreateFolderIfMissingRecursion(ctx, p.Base.LeftPath); err != nil {
			return fmt.Errorf("create base folder %s: %w", p.Base.LeftPath, err)
		}
		if err := p.RightBackend.CreateFolderIfMissingRecursion(ctx, p.Base.RightPath); err != nil {
			return fmt.Errorf("create base folder %s: %w", p.Base.RightPath, err)
		}
	}

	leftPolicy := p.Base.Config.HandleDeletion
	rightPolicy := p.Base.Config.HandleDeletion
	if leftPolicy == models.DeletionRecycler && st.recyclerLeftProbed && !st.recyclerLeftOK {
		leftPolicy = models.DeletionPermanent
	}
	if rightPolicy == models.DeletionRecycler && st.recyclerRightProbed && !st.recyclerRightOK {
		rightPolicy = models.DeletionPermanent
	}

	timestamp := time.Now()
	leftDeletion := deletion.New(p.LeftBackend, p.Base.LeftPath, leftPolicy, p.Base.Config.VersioningFolderPhrase, p.Base.Config.VersioningStyle, timestamp)
	rightDeletion := deletion.New(p.RightBackend, p.Base.RightPath, rightPolicy, p.Base.Config.VersioningFolderPhrase, p.Base.Config.VersioningStyle, timestamp)

	threadCount := d.opts.parallelOps(p.LeftDevice)
	if rtc := d.opts.parallelOps(p.RightDevice); rtc > threadCount {
		threadCount = rtc
	}
	if threadCount < 1 {
		threadCount = 1
	}

	syncOpts := d.opts.SyncOptions
	syncOpts.ThreadCount = threadCount
	syncOpts.Callback = d.opts.Callback

	syncer := NewFolderPairSyncer(p.Base, p.LeftBackend, p.RightBackend, leftDeletion, rightDeletion, syncOpts)

	d.opts.Logger.Info(ctx, "starting folder pair sync", logging.Fields{
		"left": p.Base.LeftPath, "right": p.Base.RightPath, "threads": threadCount,
	})

	runErr := syncer.RunSync(ctx)

	cleanupCtx := context.Background()
	if err := leftDeletion.TryCleanup(cleanupCtx, nil); err != nil {
		d.opts.Logger.Warn(ctx, "recycle cleanup failed", logging.Fields{"path": p.Base.LeftPath, "error": err.Error()})
	}
	if err := rightDeletion.TryCleanup(cleanupCtx, nil); err != nil {
		d.opts.Logger.Warn(ctx, "recycle cleanup failed", logging.Fields{"path": p.Base.RightPath, "error": err.Error()})
	}

	pr.ModTimeWarnings = syncer.ModTimeWarnings()
	pr.IgnoredErrors = syncer.IgnoredErrors()

	d.saveLastSynchronousState(ctx, p)

	if runErr != nil {
		d.opts.Logger.Error(ctx, "folder pair sync failed", runErr, logging.Fields{"left": p.Base.LeftPath, "right": p.Base.RightPath})
		return runErr
	}
	return nil
}

// saveLastSynchronousState implements spec.md §4.7 step 4's database
// hook: when the pair's configuration asks for it, persist its
// post-sync snapshot. This runs unconditionally of runErr — a scope
// guard, so that even a failed sync still records whatever state the
// tree ended up in — and a save failure is only ever logged, never
// surfaced as the pair's error.
func (d *Driver) saveLastSynchronousState(ctx context.Context, p *Pair) {
	if !p.Base.Config.SaveSyncDB || d.opts.StateStore == nil {
		return
	}
	if d.opts.Callback != nil {
		d.opts.Callback.ReportStatus("saving synchronization database...")
	}
	saveCtx := context.Background()
	if err := d.opts.StateStore.Save(saveCtx, p.Base); err != nil {
		d.opts.Logger.Warn(ctx, "sync state database save failed", logging.Fields{
			"left": p.Base.LeftPath, "right": p.Base.RightPath, "error": err.Error(),
		})
	}
}

// ensureAvailable re-probes both base folders' existence within
// FolderAccessTimeout, matching spec.md §4.7 step 4's "time may have
// passed since pre-flight" re-check.
func (d *Driver) ensureAvailable(ctx context.Context, p *Pair) error {
	probeCtx, cancel := context.WithTimeout(ctx, d.opts.FolderAccessTimeout)
	defer cancel()

	if !p.LeftBackend.IsNullPath(p.Base.LeftPath) {
		// Absence itself is fine — CreateFolderIfMissingRecursion handles
		// it next; only a probe error, not absence, is fatal here.
		if _, _, err := p.LeftBackend.GetItemTypeIfExists(probeCtx, p.Base.LeftPath); err != nil {
			return fmt.Errorf("probe %s: %w", p.Base.LeftPath, err)
		}
	}
	if !p.RightBackend.IsNullPath(p.Base.RightPath) {
		if _, _, err := p.RightBackend.GetItemTypeIfExists(probeCtx, p.Base.RightPath); err != nil {
			return fmt.Errorf("probe %s: %w", p.Base.RightPath, err)
		}
	}
	return nil
}
