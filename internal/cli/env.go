package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/payimport/internal/checkpoint"
	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/database"
	"github.com/JonMunkholm/payimport/internal/store/memstore"
)

// env is an opened service with its stores.
type env struct {
	cfg     *config.Config
	service *core.Service
	jobs    core.JobStore
	ckpt    *checkpoint.Store // nil for dry runs
	closers []func()
}

// Close releases the stores in reverse order of opening.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// loadConfig loads .env and the environment. Dry runs always use the
// memory driver, so they need no database URL.
func (o *options) loadConfig(dryRun bool) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	lookup := o.lookup
	if dryRun {
		lookup = func(name string) (string, bool) {
			if name == "DB_DRIVER" {
				return config.DriverMemory, true
			}
			return o.lookup(name)
		}
	}
	return config.LoadFrom(lookup)
}

// operator is the identity CLI runs import as.
func (o *options) operator() core.Operator {
	return core.Operator{ID: o.operatorID, Name: "cli", CanImport: true}
}

// openCheckpoint opens the checkpoint file from --state or the config.
func (o *options) openCheckpoint(cfg *config.Config) (*checkpoint.Store, error) {
	path := o.statePath
	if path == "" {
		path = cfg.Import.CheckpointPath
	}
	return checkpoint.Open(path)
}

// openEnv wires a service for a command. Dry runs keep payments and jobs
// in memory and write nothing; otherwise jobs and audit entries go to the
// checkpoint file and payments to the configured store. perStep overrides
// the configured step size when positive.
func (o *options) openEnv(ctx context.Context, dryRun bool, perStep int) (*env, error) {
	cfg, err := o.loadConfig(dryRun)
	if err != nil {
		return nil, err
	}
	core.StepTimeout = cfg.Import.StepTimeout

	svcCfg := cfg.Import.ServiceConfig()
	if perStep > 0 {
		svcCfg.PerStep = perStep
	}

	e := &env{cfg: cfg}
	if dryRun {
		dir, err := os.MkdirTemp("", "payimport-dry-run-")
		if err != nil {
			return nil, fmt.Errorf("create dry-run uploads dir: %w", err)
		}
		e.closers = append(e.closers, func() { os.RemoveAll(dir) })
		svcCfg.UploadsDir = dir

		mem := memstore.New()
		e.jobs = mem
		if e.service, err = core.NewService(mem, mem, mem, nil, svcCfg); err != nil {
			e.Close()
			return nil, err
		}
		e.service.UseAuditLog(mem)
		return e, nil
	}

	ckpt, err := o.openCheckpoint(cfg)
	if err != nil {
		return nil, err
	}
	e.ckpt = ckpt
	e.jobs = ckpt
	e.closers = append(e.closers, func() { ckpt.Close() })

	// Uploads live next to the checkpoint so a resumed run finds them.
	if !filepath.IsAbs(svcCfg.UploadsDir) && o.statePath != "" {
		svcCfg.UploadsDir = filepath.Join(filepath.Dir(o.statePath), svcCfg.UploadsDir)
	}

	var (
		payments  core.Store
		templates core.TemplateStore
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := memstore.New()
		payments, templates = mem, mem
	default:
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, pool.Close)
		db := database.New(pool)
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				e.Close()
				return nil, err
			}
		}
		payments, templates = db, db
	}

	if e.service, err = core.NewService(payments, ckpt, templates, nil, svcCfg); err != nil {
		e.Close()
		return nil, err
	}
	e.service.UseAuditLog(ckpt)
	return e, nil
}
