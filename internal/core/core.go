// Package core wires the seven components (Store, Resolver,
// DependencyEngine, HierarchyManager, SyncEngine, Orchestrator,
// ExecutorDriver) into the tool-call surface: one exported Go method per
// row of the external-interfaces table, each taking a typed request and
// returning a typed response plus error, in the same explicit
// construction/typed-struct style the teacher's bridge/spawner layer uses
// to hand requests to lower components.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jivedev/jivecore/internal/config"
	"github.com/jivedev/jivecore/internal/depgraph"
	"github.com/jivedev/jivecore/internal/embedding"
	"github.com/jivedev/jivecore/internal/eventbus"
	"github.com/jivedev/jivecore/internal/executor"
	"github.com/jivedev/jivecore/internal/hierarchy"
	"github.com/jivedev/jivecore/internal/orchestrator"
	"github.com/jivedev/jivecore/internal/resolver"
	"github.com/jivedev/jivecore/internal/store"
	"github.com/jivedev/jivecore/internal/syncengine"
)

// Core composes every component over one Store and exposes the tool-call
// surface of §6.1 as exported methods.
type Core struct {
	Store        *store.Store
	Resolver     *resolver.Resolver
	Hierarchy    *hierarchy.Manager
	Dependencies *depgraph.Engine
	Sync         *syncengine.Engine
	Executor     *executor.Driver
	Orchestrator *orchestrator.Orchestrator
	Bus          *eventbus.Bus
}

// New builds a Core from cfg. bus may be nil (no event fan-out, e.g. in
// tests or a bus-less deployment).
func New(cfg *config.Config, bus *eventbus.Bus) (*Core, error) {
	provider := embedding.NewHTTPProvider(cfg.Embedding.Endpoint, cfg.Embedding.Model, cfg.Store.EmbeddingDimension)
	embeddingSvc := embedding.NewService(provider, cfg.Store.EmbeddingDimension)

	if err := os.MkdirAll(cfg.Store.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	s, err := store.Open(filepath.Join(cfg.Store.DataPath, "store.db"), embeddingSvc, store.Options{
		MaxRetries:       cfg.Store.MaxRetries,
		RetryBase:        time.Duration(cfg.Store.RetryBaseSeconds * float64(time.Second)),
		EnableFTS:        cfg.Store.EnableFTS,
		NormalizeVectors: cfg.Store.NormalizeEmbeddings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	r := resolver.New(s)
	h := hierarchy.New(s)
	d := depgraph.New(s)
	syncEngine := syncengine.New(s, cfg.Sync.TasksRoot, cfg.Sync.CompressSyncPayloads)
	driver := executor.New(s, d, cfg.Execution.MaxParallel)
	orch := orchestrator.New(s, r, h, d, driver, bus)

	return &Core{
		Store:        s,
		Resolver:     r,
		Hierarchy:    h,
		Dependencies: d,
		Sync:         syncEngine,
		Executor:     driver,
		Orchestrator: orch,
		Bus:          bus,
	}, nil
}

// Close releases the Store's underlying connection and stops every active
// ExecutionSession actor.
func (c *Core) Close() error {
	c.Orchestrator.Shutdown()
	return c.Store.Close()
}
