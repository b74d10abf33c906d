package cmd

import (
	"time"

	"github.com/cindergrace/depot/internal/catalog"
	"github.com/cindergrace/depot/internal/fetch"
	"github.com/cindergrace/depot/internal/report"
	"github.com/cindergrace/depot/internal/resolve"
	"github.com/cindergrace/depot/internal/ui"
)

// mustLoadCatalog loads the configured catalog document or exits.
func mustLoadCatalog() *catalog.Catalog {
	store := catalog.NewStore()
	if err := store.LoadFile(cfg.Paths.Catalog); err != nil {
		ui.Fatal("Failed to load catalog %s: %v", cfg.Paths.Catalog, err)
	}
	return store.Current()
}

// newResolver builds a resolver over the configured roots. The backup root
// is only probed when the backup feature is enabled.
func newResolver(deepVerify bool) *resolve.Resolver {
	backupRoot := ""
	if featureEnabled("backup") {
		backupRoot = cfg.Paths.Backup
	}
	return resolve.NewResolver(cfg.Paths.Models, backupRoot, deepVerify)
}

// newOrchestrator builds the download orchestrator from config, wiring its
// completion hook to the resolver's cache invalidation.
func newOrchestrator(r *resolve.Resolver, parallelism int) *fetch.Orchestrator {
	if parallelism <= 0 {
		parallelism = cfg.Downloads.Parallelism
	}
	transport := fetch.NewHTTPTransport(
		time.Duration(cfg.Downloads.TimeoutSecs)*time.Second,
		cfg.Security.InsecureSkipTLSVerify,
	)
	backupRoot := ""
	if featureEnabled("backup") {
		backupRoot = cfg.Paths.Backup
	}
	o := fetch.New(fetch.Options{
		Parallelism:    parallelism,
		MaxRetries:     cfg.Downloads.MaxRetries,
		RetryBaseDelay: time.Duration(cfg.Downloads.RetryBaseMS) * time.Millisecond,
	}, transport, cfg.Paths.Models, backupRoot)
	o.OnComplete(func(modelID string) { r.Invalidate(modelID) })
	return o
}

// diskThresholds converts the config's disk section.
func diskThresholds() report.Thresholds {
	return report.Thresholds{
		WarnFreeBytes:    uint64(cfg.Disk.WarnFreeGB) << 30,
		LowFreeBytes:     uint64(cfg.Disk.LowFreeGB) << 30,
		WarnUsedFraction: float64(cfg.Disk.WarnUsedPercent) / 100,
	}
}

// statusLabel renders a resolve status with its usual color.
func statusLabel(s resolve.Status) string {
	switch s {
	case resolve.StatusPresent:
		return ui.Success("present")
	case resolve.StatusMissing:
		return ui.ErrorMsg("missing")
	case resolve.StatusBackupAvailable:
		return ui.Warning("backup")
	case resolve.StatusCorrupt:
		return ui.ErrorMsg("corrupt")
	}
	return s.String()
}

// healthLabel renders a disk health class with its usual color.
func healthLabel(h report.Health) string {
	switch h {
	case report.HealthOK:
		return ui.Success(h.String())
	case report.HealthLow:
		return ui.Warning(h.String())
	case report.HealthWarning:
		return ui.ErrorMsg(h.String())
	}
	return h.String()
}
