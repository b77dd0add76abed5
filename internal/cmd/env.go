package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finassist/finassist/configs"
	"github.com/finassist/finassist/internal/audit"
	"github.com/finassist/finassist/internal/config"
	"github.com/finassist/finassist/internal/finance"
	"github.com/finassist/finassist/internal/log"
	"github.com/finassist/finassist/internal/prompts"
	"github.com/finassist/finassist/internal/store/memory"
	"github.com/finassist/finassist/internal/tools"
)

// env is what every subcommand needs: settings, data and the tool executor.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *memory.Store
	family   finance.Family
	catalog  *tools.Catalog
	executor *tools.Executor
	audit    audit.Logger
	prompts  *prompts.Bundle
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if familyID != "" {
		cfg.FamilyID = familyID
	}
	logger := log.New(cfg.LogLevel)

	store, err := loadStore(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	fam, err := store.Family(ctx, strings.TrimSpace(cfg.FamilyID))
	if err != nil {
		return nil, err
	}
	bundle, err := prompts.Load(cfg.Lang)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	auditLog := audit.New(logger)
	catalog := tools.DefaultCatalog()
	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		family:  fam,
		catalog: catalog,
		executor: &tools.Executor{
			Catalog: catalog,
			Data:    store,
			Logger:  logger,
			Audit:   auditLog,
		},
		audit:   auditLog,
		prompts: bundle,
	}, nil
}

func loadStore(path string) (*memory.Store, error) {
	if strings.TrimSpace(path) != "" {
		return memory.LoadFile(path)
	}
	raw, err := configs.Load(configs.SampleDataset)
	if err != nil {
		return nil, err
	}
	return memory.Load(raw)
}
