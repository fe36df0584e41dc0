package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/cloudsync/internal/config"
	"github.com/openmined/cloudsync/internal/stores/dropbox"
	"github.com/openmined/cloudsync/internal/stores/gdrive"
	"github.com/openmined/cloudsync/internal/stores/local"
	"github.com/openmined/cloudsync/internal/stores/s3store"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/openmined/cloudsync/internal/utils"
)

// app is one wired reconciliation engine for a config.
type app struct {
	cfg     *config.Config
	local   sync.LocalStore
	cloud   sync.CloudStore
	service *sync.SyncService
	lock    *utils.DirLock
}

type appOptions struct {
	// lock the local tree for the lifetime of the app
	lock bool
	// cloud overrides the store built from the config
	cloud sync.CloudStore
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	localStore, err := local.NewStore(cfg.LocalDir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, local: localStore}
	if cfg.DryRun {
		a.local = local.NewDryRunStore(localStore)
	}

	if opts.lock {
		if a.lock, err = utils.LockDir(localStore.Root()); err != nil {
			return nil, err
		}
	}

	a.cloud = opts.cloud
	if a.cloud == nil {
		if a.cloud, err = newCloudStore(ctx, cfg); err != nil {
			a.Close()
			return nil, err
		}
	}

	comparer, err := sync.NewContentComparer(cfg.Backend(), a.local, a.cloud)
	if err != nil {
		a.Close()
		return nil, err
	}

	ignore := sync.NewSyncIgnoreList(localStore.Root(), cfg.Include...)
	if err := ignore.Load(); err != nil {
		a.Close()
		return nil, fmt.Errorf("load ignore list: %w", err)
	}

	mapperCfg := cfg.MapperConfig()
	mapper := sync.NewFolderMapper(a.local, a.cloud, sync.NewSyncActionProvider(comparer), mapperCfg, sync.WithIgnoreList(ignore))
	a.service = sync.NewSyncService(a.local, a.cloud, mapper, mapperCfg)

	slog.Debug("app created", "config", cfg)
	return a, nil
}

func (a *app) Close() error {
	if a.lock == nil {
		return nil
	}
	err := a.lock.Unlock()
	a.lock = nil
	return err
}

func newCloudStore(ctx context.Context, cfg *config.Config) (sync.CloudStore, error) {
	switch backend := cfg.Backend(); backend {
	case sync.BackendDropbox:
		return dropbox.NewStore(&dropbox.Config{
			AccessToken:  cfg.Dropbox.AccessToken,
			RefreshToken: cfg.Dropbox.RefreshToken,
			AppKey:       cfg.Dropbox.AppKey,
			AppSecret:    cfg.Dropbox.AppSecret,
			RetryCount:   3,
			DryRun:       cfg.DryRun,
		})
	case sync.BackendGDrive:
		return gdrive.NewStore(ctx, &gdrive.Config{
			CredentialsFile: cfg.GDrive.CredentialsFile,
			ClientID:        cfg.GDrive.ClientID,
			ClientSecret:    cfg.GDrive.ClientSecret,
			RefreshToken:    cfg.GDrive.RefreshToken,
			AccessToken:     cfg.GDrive.AccessToken,
			RootID:          cfg.GDrive.RootID,
			DryRun:          cfg.DryRun,
		})
	case sync.BackendS3:
		return s3store.NewStore(ctx, &s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Endpoint:  cfg.S3.Endpoint,
			DryRun:    cfg.DryRun,
		})
	default:
		return nil, fmt.Errorf("%w: %q", sync.ErrUnsupportedBackend, backend)
	}
}

// exitCode maps run errors to process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sync.ErrAborted):
		return 130
	case errors.Is(err, utils.ErrLocked):
		return 3
	default:
		return 1
	}
}
