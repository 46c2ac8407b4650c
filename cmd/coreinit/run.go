package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coreinit/coreinit/lib/config"
	"github.com/coreinit/coreinit/property"
	"github.com/coreinit/coreinit/propsvc"
	"github.com/coreinit/coreinit/sandbox"
	"github.com/coreinit/coreinit/supervisor"
)

// storePublisher adapts *property.Store to supervisor.PropertyPublisher,
// which speaks in terms of error rather than property.Result — the
// supervisor package has no reason to know the property package's
// result vocabulary, only whether the publish succeeded.
type storePublisher struct {
	store *property.Store
}

func (p storePublisher) Set(name, value string) error {
	result := p.store.Set(name, value)
	if result != property.Success {
		return fmt.Errorf("property: set %s: %s", name, result.String())
	}
	return nil
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	trie := property.NewInfoTrie()
	if entries, err := property.LoadContextsFile(cfg.Property.ContextsFile); err == nil {
		trie.Load(entries)
	} else {
		logger.Warn("no property-contexts file loaded", "path", cfg.Property.ContextsFile, "error", err)
	}
	if err := property.Publish(trie, cfg.Paths.PublishedTrie); err != nil {
		logger.Warn("failed to publish property-info trie", "error", err)
	}

	store := property.NewStore(cfg.Paths.PersistDir, trie)

	resolve := func(name string) (string, bool) { return store.Get(name) }
	expand := func(s string) string {
		return sandbox.ExpandPropertyRefs(s, store.Snapshot())
	}

	if err := property.LoadDefaultsInto(store, property.DefaultIngestionOrder(cfg.Property.AllowLocalOverride), expand); err != nil {
		logger.Warn("failed to load default properties", "error", err)
	}
	if err := property.IngestKernelCmdline(store, cfg.Boot.CmdlinePath); err != nil {
		logger.Warn("failed to ingest kernel cmdline", "error", err)
	}
	if err := property.IngestDeviceTreeOverrides(store, cfg.Boot.DeviceTreeOverrides); err != nil {
		logger.Warn("failed to ingest device-tree overrides", "error", err)
	}
	property.ExportBootAliases(store)

	internalServerConn, internalSupervisorConn, err := propsvc.NewInternalSocketPair()
	if err != nil {
		return fmt.Errorf("coreinit: creating internal socket pair: %w", err)
	}

	server := propsvc.NewServer(cfg.Paths.PropertySocket, store, internalServerConn, logger.With("component", "propsvc"))

	registry := supervisor.NewRegistry()
	svcCtx := supervisor.NewContext(logger.With("component", "supervisor"), nil, storePublisher{store: store})

	loader := supervisor.NewDefinitionLoader()
	loader.SetLogger(logger)
	if err := loader.LoadDirectory(cfg.Paths.ServiceDefinitions); err != nil {
		return fmt.Errorf("coreinit: loading service definitions: %w", err)
	}
	services, err := loader.BuildServices()
	if err != nil {
		return fmt.Errorf("coreinit: resolving service definitions: %w", err)
	}
	for _, svc := range services {
		if err := registry.Add(svc); err != nil {
			return fmt.Errorf("coreinit: registering service: %w", err)
		}
	}

	bootComplete := newBootGate(store)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			logger.Error("property server stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runDispatchLoop(ctx, internalSupervisorConn, registry, svcCtx, resolve, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runReapLoop(ctx, registry, svcCtx, bootComplete, logger)
	}()

	loadPersistent := propsvc.InternalMessage{Kind: propsvc.MessageLoadPersistentProperties}
	if err := internalSupervisorConn.WriteMessage(loadPersistent); err != nil {
		logger.Warn("failed to request persistent property load", "error", err)
	}

	for _, name := range registry.Names() {
		svc := registry.Get(name)
		if err := svc.StartIfNotDisabled(svcCtx, registry, resolve); err != nil {
			logger.Warn("service failed to start at boot", "service", name, "error", err)
		}
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}
