// Package scan drives one timed collection pass: it dispatches every
// enabled collector, absorbs their failures, and hands the merged outcome
// to the bundle for sealing.
package scan

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coldsnap/audit"
	"coldsnap/collectors"
	"coldsnap/collectors/linux"
	"coldsnap/collectors/system"
	"coldsnap/core/internal/bundle"
)

const orchestratorSource = "orchestrator"

// graceAfterDeadline is how long a collector that honors cancellation gets
// to hand back its truncated subset before the orchestrator abandons it.
const graceAfterDeadline = 100 * time.Millisecond

// Options configures one scan run.
type Options struct {
	Scope       collectors.Scope
	ToolVersion string
	// Logger carries operator-facing progress diagnostics. It is separate
	// from the evidence-grade audit log inside the bundle.
	Logger zerolog.Logger
	// Collectors overrides the default registry; used by tests.
	Collectors map[collectors.Kind]collectors.Collector
}

func defaultCollector(kind collectors.Kind) collectors.Collector {
	switch kind {
	case collectors.KindSystemInfo:
		return system.NewInfoCollector()
	case collectors.KindProcesses:
		return linux.NewProcessesCollector()
	case collectors.KindNetwork:
		return linux.NewNetworkCollector()
	case collectors.KindPersistence:
		return linux.NewPersistenceCollector()
	case collectors.KindEventLogs:
		return linux.NewEventLogsCollector()
	case collectors.KindExecution:
		return linux.NewExecutionCollector()
	default:
		return nil
	}
}

func (o Options) collector(kind collectors.Kind) collectors.Collector {
	if c, ok := o.Collectors[kind]; ok {
		return c
	}
	return defaultCollector(kind)
}

// Run executes one scan against the scope and returns the sealed bundle.
// Collector failures of any class surface as per-kind Failed statuses and
// audit entries; the only error Run itself returns is a bundle that cannot
// be serialized, in which case nothing usable can be emitted.
func Run(ctx context.Context, opts Options) (*bundle.Result, error) {
	if err := opts.Scope.Validate(); err != nil {
		return nil, err
	}

	start := time.Now().UTC()
	scanID := uuid.NewString()
	log := audit.NewLog()
	log.Infof(orchestratorSource, "scan %s started, %d collectors enabled", scanID, len(opts.Scope.Kinds))
	opts.Logger.Info().Str("scan_id", scanID).Msg("scan started")

	if opts.Scope.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Scope.ScanTimeout)
		defer cancel()
	}

	rc := collectors.RunContext{Scope: opts.Scope, Log: log}
	results := make(map[collectors.Kind]*collectors.PartialResult, len(opts.Scope.Kinds))

	// Processes runs first: Network's owning-process cross-reference needs
	// it to have reached a terminal state. This is the only inter-collector
	// ordering constraint; on failure Network proceeds with null fields.
	if opts.Scope.Enabled(collectors.KindProcesses) {
		pr := runBounded(ctx, opts, collectors.KindProcesses, rc)
		results[collectors.KindProcesses] = pr
		if pr.Status != collectors.StatusFailed {
			index := make(collectors.ProcessIndex, len(pr.Processes))
			for _, p := range pr.Processes {
				index[p.PID] = p.Name
			}
			rc.Processes = index
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, kind := range opts.Scope.Kinds {
		if kind == collectors.KindProcesses {
			continue
		}
		kind := kind
		g.Go(func() error {
			pr := runBounded(ctx, opts, kind, rc)
			mu.Lock()
			results[kind] = pr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures become statuses

	if ctx.Err() != nil {
		log.Warnf(orchestratorSource, "scan deadline fired, aggregating available results")
	}

	meta := bundle.Metadata{
		ScanID:       scanID,
		ScanStartUTC: start,
		ToolVersion:  opts.ToolVersion,
	}
	if h, err := os.Hostname(); err == nil {
		meta.Hostname = h
	}
	if si := results[collectors.KindSystemInfo]; si != nil && si.SystemInfo != nil {
		meta.OSVersion = si.SystemInfo.OSVersion
	}

	result := bundle.Assemble(results, log, meta)
	result.ScanMetadata.ScanDurationMS = time.Since(start).Milliseconds()
	if err := bundle.Seal(result); err != nil {
		return nil, fmt.Errorf("scan %s: %w", scanID, err)
	}

	opts.Logger.Info().
		Str("scan_id", scanID).
		Str("status", string(result.OverallStatus())).
		Int64("duration_ms", result.ScanMetadata.ScanDurationMS).
		Msg("scan finished")
	return result, nil
}

// runBounded races one collector against its module deadline. Errors,
// panics and timeouts all collapse into a Failed result plus one ERROR
// audit entry; they never propagate to sibling collectors.
func runBounded(ctx context.Context, opts Options, kind collectors.Kind, rc collectors.RunContext) *collectors.PartialResult {
	source := string(kind)
	c := opts.collector(kind)
	if c == nil {
		pr := collectors.Failed(kind, "no collector available for this kind")
		rc.Log.Errorf(source, "collection failed: %s", pr.FailureReason)
		return pr
	}

	runCtx := ctx
	if opts.Scope.ModuleTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Scope.ModuleTimeout)
		defer cancel()
	}

	opts.Logger.Debug().Str("kind", source).Msg("collector dispatched")
	done := make(chan *collectors.PartialResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- collectors.Failed(kind, fmt.Sprintf("collector panic: %v", r))
			}
		}()
		pr, err := c.Collect(runCtx, rc)
		switch {
		case err != nil:
			done <- collectors.Failed(kind, err.Error())
		case pr == nil:
			done <- collectors.Failed(kind, "collector returned no result")
		default:
			pr.Kind = kind
			done <- pr
		}
	}()

	pr := awaitCollector(runCtx, done)
	if pr == nil {
		// The collector may be stuck in an uninterruptible OS call. Its
		// goroutine is abandoned and any eventual result discarded; whether
		// the underlying call leaks is a known platform limitation.
		reason := "timeout: module deadline exceeded"
		if ctx.Err() != nil {
			reason = "timeout: scan deadline exceeded"
		}
		pr = collectors.Failed(kind, reason)
	}
	switch pr.Status {
	case collectors.StatusFailed:
		rc.Log.Errorf(source, "collection failed: %s", pr.FailureReason)
		opts.Logger.Warn().Str("kind", source).Str("reason", pr.FailureReason).Msg("collector failed")
	default:
		opts.Logger.Debug().Str("kind", source).Str("status", string(pr.Status)).Msg("collector finished")
	}
	return pr
}

// awaitCollector returns the collector's result, or nil once the deadline
// plus a short grace window has passed. The grace window lets collectors
// that honor cancellation hand back their truncated subset.
func awaitCollector(runCtx context.Context, done <-chan *collectors.PartialResult) *collectors.PartialResult {
	select {
	case pr := <-done:
		return pr
	case <-runCtx.Done():
		grace := time.NewTimer(graceAfterDeadline)
		defer grace.Stop()
		select {
		case pr := <-done:
			return pr
		case <-grace.C:
			return nil
		}
	}
}

// ExitCode maps a bundle to the process exit contract: 0 all complete,
// 1 at least one truncated and none failed, 2 at least one failed.
func ExitCode(r *bundle.Result) int {
	switch r.OverallStatus() {
	case collectors.StatusFailed:
		return 2
	case collectors.StatusTruncated:
		return 1
	default:
		return 0
	}
}
