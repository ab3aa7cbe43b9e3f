package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/toshik-babe/engine/sidecar/audit"
	"github.com/toshik-babe/engine/sidecar/launchtoken"
	"github.com/toshik-babe/engine/sidecar/processes"
)

func (a *app) portManager() (*processes.PortManager, error) {
	return processes.NewPortManager(a.cfg.Ports.Min, a.cfg.Ports.Max)
}

func (a *app) resolver() *processes.EntryPointResolver {
	return processes.NewEntryPointResolver(a.cfg.Backend.EntryPoint, a.cfg.Backend.Ascents)
}

// openAudit opens the audit database. The caller closes the returned DB.
func (a *app) openAudit() (*audit.Logger, *sqlx.DB, error) {
	path, err := a.cfg.InDataDir(orDefault(a.cfg.Audit.Database, audit.DefaultDatabaseName))
	if err != nil {
		return nil, nil, err
	}
	db, err := audit.Open(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := audit.NewLogger(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}
	return logger, db, nil
}

// issuer loads the signing key, creating it on first use when create is set.
// Read-only commands pass false so they never mint a secret.
func (a *app) issuer(create bool) (*launchtoken.Issuer, error) {
	path, err := a.cfg.InDataDir(orDefault(a.cfg.Token.SecretFile, launchtoken.DefaultSecretFileName))
	if err != nil {
		return nil, err
	}
	load := launchtoken.ReadSecretKey
	if create {
		load = launchtoken.LoadSecretKey
	}
	key, err := load(path)
	if err != nil {
		return nil, err
	}
	return launchtoken.NewIssuer(key, a.cfg.TokenTTL())
}

// supervisor assembles a Supervisor from the loaded config. cleanup releases
// the audit database and must run after Shutdown.
func (a *app) supervisor() (sup *processes.Supervisor, cleanup func(), err error) {
	cleanup = func() {}

	dataDir, err := a.cfg.ResolveDataDir()
	if err != nil {
		return nil, cleanup, fmt.Errorf("Failed to resolve app data dir: %w", err)
	}
	ports, err := a.portManager()
	if err != nil {
		return nil, cleanup, err
	}
	mode, err := processes.ParseEnvFileMode(a.cfg.Backend.EnvFileMode)
	if err != nil {
		return nil, cleanup, err
	}

	supConfig := processes.Config{
		PortManager: ports,
		Resolver:    a.resolver(),
		DataDir:     dataDir,
		LogFileName: a.cfg.LogFile,
		Runtime:     a.cfg.Backend.Runtime,
		RuntimeArgs: a.cfg.Backend.RuntimeArgs,
		EnvFileName: a.cfg.Backend.EnvFile,
		EnvFileMode: mode,
		Env:         a.cfg.Backend.Env,
		Logger:      a.logger,
	}

	if a.cfg.Audit.Enabled {
		recorder, db, err := a.openAudit()
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := db.Close(); err != nil {
				a.logger.Warn("Failed to close audit database", "error", err)
			}
		}
		if retention := a.cfg.AuditRetention(); retention > 0 {
			if n, err := recorder.DeleteOldEvents(retention); err != nil {
				a.logger.Warn("Failed to prune audit events", "error", err)
			} else if n > 0 {
				a.logger.Debug("Pruned audit events", "count", n)
			}
		}
		supConfig.Recorder = recorder
	}

	if a.cfg.Token.Enabled {
		issuer, err := a.issuer(true)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		supConfig.Tokens = issuer
	}

	sup, err = processes.NewSupervisor(supConfig)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return sup, cleanup, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// portRange is the validated range the supervisor scans.
func (a *app) portRange() (int, int) {
	pm, err := a.portManager()
	if err != nil {
		return a.cfg.Ports.Min, a.cfg.Ports.Max
	}
	return pm.Range()
}
