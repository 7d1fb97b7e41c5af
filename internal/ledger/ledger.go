// Package ledger is the facade over the two storage backends, the
// scorer, the compliance checker and the monitor. It owns the single
// write path: entries are chained, written to both backends under one
// lock, and only then published to lock-free readers.
package ledger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mvoigt/decledger/internal/alert"
	"github.com/mvoigt/decledger/internal/compliance"
	"github.com/mvoigt/decledger/internal/config"
	"github.com/mvoigt/decledger/internal/criticality"
	"github.com/mvoigt/decledger/internal/export"
	"github.com/mvoigt/decledger/internal/filestore"
	"github.com/mvoigt/decledger/internal/hashchain"
	"github.com/mvoigt/decledger/internal/index"
	"github.com/mvoigt/decledger/internal/model"
	"github.com/mvoigt/decledger/internal/monitor"
	"github.com/mvoigt/decledger/internal/retention"
)

// EscalationSession marks synthetic entries the ledger records about
// its own alerts. Entries in this session are never fed back into the
// monitor, which would otherwise re-alert on them.
const EscalationSession = "ledger-internal"

// Ledger coordinates the chain, both stores, scoring and monitoring.
type Ledger struct {
	dir   string
	cfg   *config.Config
	idx   *index.Store
	files *filestore.Store
	mon   *monitor.Monitor
	ret   *retention.Manager

	// cfgMu guards the hot-reloadable components.
	cfgMu      sync.RWMutex
	checker    *compliance.Checker
	assessor   *criticality.Assessor
	dispatcher *alert.Dispatcher

	// mu serializes the write path: chain advance plus both backend
	// writes happen under it. Readers never take it.
	mu    sync.Mutex
	chain *hashchain.State

	snapshot atomic.Pointer[model.ChainState]
	closed   atomic.Bool
	wg       sync.WaitGroup

	// syncMonitor makes Observe run on the caller's goroutine, used by
	// tests that assert on alerts deterministically.
	syncMonitor bool
}

// Open opens (or creates) a ledger rooted at dir. The chain head is
// resumed from the index tail, so restarts continue the existing chain.
func Open(dir string, cfg *config.Config) (*Ledger, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	idx, err := index.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}
	files, err := filestore.Open(dir, cfg.FilestoreOptions())
	if err != nil {
		idx.Close()
		return nil, err
	}

	checksum, position, ok, err := idx.Tail(context.Background())
	if err != nil {
		idx.Close()
		files.Close()
		return nil, err
	}
	var chain *hashchain.State
	if ok {
		chain = hashchain.Resume(checksum, position, cfg.CheckpointInterval)
	} else {
		chain = hashchain.NewState(cfg.CheckpointInterval)
	}

	l := &Ledger{
		dir:        dir,
		cfg:        cfg,
		idx:        idx,
		files:      files,
		chain:      chain,
		checker:    compliance.NewChecker(cfg.Retention()),
		assessor:   criticality.NewAssessor(cfg.CriticalityWeights, cfg.ProcessingCeiling()),
		dispatcher: alert.NewDispatcher(cfg.Webhooks),
	}
	l.mon = monitor.New(cfg.MonitorThresholds(), l.escalate)
	l.ret = retention.NewManager(files, idx, cfg.Retention(), cfg.RetentionMode(), dir)
	l.snapshot.Store(chain.Snapshot())
	return l, nil
}

// ApplyConfig swaps the hot-reloadable parameters: scoring weights,
// retention window, alert thresholds and webhook destinations. Storage
// layout settings (dir, rotation, checkpoint interval) require a
// restart and are ignored here.
func (l *Ledger) ApplyConfig(cfg *config.Config) {
	l.cfgMu.Lock()
	l.checker = compliance.NewChecker(cfg.Retention())
	l.assessor = criticality.NewAssessor(cfg.CriticalityWeights, cfg.ProcessingCeiling())
	l.dispatcher = alert.NewDispatcher(cfg.Webhooks)
	l.cfgMu.Unlock()
	l.mon.SetThresholds(cfg.MonitorThresholds())
	l.ret = retention.NewManager(l.files, l.idx, cfg.Retention(), cfg.RetentionMode(), l.dir)
}

// RecordDecision validates, scores and appends one decision record.
// The returned entry is the chained form, including its position and
// checksum. On success the entry is durable in both backends.
func (l *Ledger) RecordDecision(ctx context.Context, rec *model.DecisionRecord) (*model.AuditEntry, error) {
	entry, err := l.record(ctx, rec)
	if err != nil {
		return nil, err
	}
	l.feedMonitor(entry)
	return entry, nil
}

func (l *Ledger) record(ctx context.Context, rec *model.DecisionRecord) (*model.AuditEntry, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if err := rec.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	rec.Normalize()

	l.cfgMu.RLock()
	checker, assessor := l.checker, l.assessor
	l.cfgMu.RUnlock()

	flags := checker.Evaluate(rec)
	tier, _ := assessor.Assess(rec, flags)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate entry id: %w", err)
	}
	digest, err := hashchain.PayloadDigest(rec)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := &model.AuditEntry{
		ID:            id.String(),
		Position:      l.chain.NextPosition(),
		Timestamp:     time.Now().UTC(),
		Criticality:   tier,
		Compliance:    compliance.Status(flags),
		PayloadDigest: digest,
		PrevHash:      l.chain.LatestHash(),
		Payload:       *rec,
	}
	checksum, err := hashchain.EntryChecksum(entry)
	if err != nil {
		return nil, err
	}
	entry.Checksum = checksum

	// Two-phase write: index row first, then the durable file line. A
	// failed file write rolls the index row back so no entry is ever
	// visible in one backend only; if even the rollback fails the
	// caller gets a PartialWriteError and reconcile repairs it.
	if err := l.idx.Insert(ctx, entry); err != nil {
		return nil, &StorageUnavailableError{Backend: "index", Err: err}
	}
	if err := l.files.Append(entry); err != nil {
		if delErr := l.idx.Delete(ctx, entry.ID); delErr != nil {
			return nil, &PartialWriteError{
				EntryID:   entry.ID,
				Succeeded: "index",
				Failed:    "filestore",
				Err:       err,
			}
		}
		return nil, &StorageUnavailableError{Backend: "filestore", Err: err}
	}

	l.chain.Advance(entry.Checksum, entry.Timestamp)
	l.snapshot.Store(l.chain.Snapshot())

	if entry.Criticality == model.CriticalityCritical {
		// Best effort: the entry is already durable in both backends.
		if err := l.files.WriteCriticalCopy(entry); err != nil {
			fmt.Fprintf(os.Stderr, "critical copy of %s failed: %v\n", entry.ID, err)
		}
	}
	return entry, nil
}

// feedMonitor folds the entry into the rolling window. Escalation
// entries are skipped so the monitor never alerts on its own output.
func (l *Ledger) feedMonitor(entry *model.AuditEntry) {
	if entry.Payload.SessionID == EscalationSession {
		return
	}
	if l.syncMonitor {
		l.observe(entry)
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.observe(entry)
	}()
}

func (l *Ledger) observe(entry *model.AuditEntry) {
	raised := l.mon.Observe(entry)
	if len(raised) == 0 {
		return
	}
	l.cfgMu.RLock()
	d := l.dispatcher
	l.cfgMu.RUnlock()
	if d != nil {
		for _, a := range raised {
			d.Dispatch(a)
		}
	}
}

// escalate chains a synthetic entry documenting a critical alert, so
// the alert itself becomes part of the tamper-evident record.
func (l *Ledger) escalate(a model.Alert) {
	rec := &model.DecisionRecord{
		SessionID:     EscalationSession,
		DecisionPath:  "monitor/" + a.Type,
		InputSummary:  a.Message,
		OutputSummary: fmt.Sprintf("alert escalated for entry %s", a.EntryID),
		Confidence:    1.0,
	}
	if _, err := l.record(context.Background(), rec); err != nil {
		fmt.Fprintf(os.Stderr, "alert escalation entry failed: %v\n", err)
	}
}

// QueryResult carries query output plus a degradation marker set when
// the structured store was unavailable and the slower file scan served
// the query instead.
type QueryResult struct {
	Entries  []*model.AuditEntry `json:"entries"`
	Degraded bool                `json:"degraded,omitempty"`
}

// Query selects entries matching the criteria, newest first, up to
// limit. Falls back to scanning the file store when the index fails.
func (l *Ledger) Query(ctx context.Context, c model.QueryCriteria, limit int) (*QueryResult, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	entries, err := l.idx.Query(ctx, c, limit)
	if err == nil {
		return &QueryResult{Entries: entries}, nil
	}

	scanned, scanErr := l.scanQuery(c, limit)
	if scanErr != nil {
		return nil, &StorageUnavailableError{Backend: "index", Err: err}
	}
	return &QueryResult{Entries: scanned, Degraded: true}, nil
}

// scanQuery is the degraded path: linear scan over every generation.
func (l *Ledger) scanQuery(c model.QueryCriteria, limit int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	all, err := l.files.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []*model.AuditEntry
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if matchesCriteria(all[i], c) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func matchesCriteria(e *model.AuditEntry, c model.QueryCriteria) bool {
	if !c.From.IsZero() && e.Timestamp.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && e.Timestamp.After(c.To) {
		return false
	}
	if c.MinCriticality > 0 && e.Criticality < c.MinCriticality {
		return false
	}
	if c.DecisionPath != "" && e.Payload.DecisionPath != c.DecisionPath {
		return false
	}
	if c.SessionID != "" && e.Payload.SessionID != c.SessionID {
		return false
	}
	if c.HasViolations && !e.HasViolations() {
		return false
	}
	return true
}

// Export writes entries matching the criteria in the given format.
func (l *Ledger) Export(ctx context.Context, w io.Writer, format export.Format, c model.QueryCriteria, limit int) error {
	res, err := l.Query(ctx, c, limit)
	if err != nil {
		return err
	}
	return export.Write(w, format, res.Entries, time.Now())
}

// ChainState returns the current chain head snapshot without locking.
func (l *Ledger) ChainState() *model.ChainState {
	return l.snapshot.Load()
}

// Alerts returns the monitor's retained alerts, oldest first.
func (l *Ledger) Alerts() []model.Alert {
	return l.mon.Alerts()
}

// SweepRetention archives or deletes generations older than the
// retention window and returns the sweep report.
func (l *Ledger) SweepRetention(ctx context.Context, now time.Time) (*retention.Report, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	return l.ret.Sweep(ctx, now)
}

// Summary is the operator-facing status of one ledger.
type Summary struct {
	Dir           string                      `json:"dir"`
	ChainLength   int64                       `json:"chain_length"`
	LatestHash    string                      `json:"latest_hash"`
	Checkpoints   int                         `json:"checkpoints"`
	TotalEntries  int64                       `json:"total_entries"`
	ByCriticality map[model.Criticality]int64 `json:"by_criticality"`
	Compliant     int64                       `json:"compliant"`
	AvgConfidence float64                     `json:"avg_confidence"`
	AvgProcessing float64                     `json:"avg_processing_ms"`
	Generations   int                         `json:"generations"`
	StorageBytes  int64                       `json:"storage_bytes"`
	ActiveAlerts  int                         `json:"active_alerts"`
}

// Summarize collects the status summary.
func (l *Ledger) Summarize(ctx context.Context) (*Summary, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	stats, err := l.idx.CollectStats(ctx)
	if err != nil {
		return nil, &StorageUnavailableError{Backend: "index", Err: err}
	}
	snap := l.snapshot.Load()
	return &Summary{
		Dir:           l.dir,
		ChainLength:   snap.Length,
		LatestHash:    snap.LatestHash,
		Checkpoints:   len(snap.Checkpoints),
		TotalEntries:  stats.Total,
		ByCriticality: stats.ByCriticality,
		Compliant:     stats.Compliant,
		AvgConfidence: stats.AvgConfidence,
		AvgProcessing: stats.AvgProcessing,
		Generations:   len(l.files.Generations()),
		StorageBytes:  l.files.TotalSize(),
		ActiveAlerts:  len(l.mon.Alerts()),
	}, nil
}

// Close drains the monitor feed and closes both backends.
func (l *Ledger) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.wg.Wait()
	idxErr := l.idx.Close()
	fsErr := l.files.Close()
	if idxErr != nil {
		return idxErr
	}
	return fsErr
}
