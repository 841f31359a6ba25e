package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mindvault/mindvault/internal/brain"
	"github.com/mindvault/mindvault/internal/config"
	"github.com/mindvault/mindvault/internal/embed"
	"github.com/mindvault/mindvault/internal/index"
	"github.com/mindvault/mindvault/internal/llm"
	"github.com/mindvault/mindvault/internal/logging"
	"github.com/mindvault/mindvault/internal/search"
	"github.com/mindvault/mindvault/internal/store"
	"github.com/mindvault/mindvault/internal/vault"
)

// app holds the wired component graph for one command invocation.
type app struct {
	config   *config.Config
	metadata *store.MetadataStore
	vectors  *store.HNSWStore
	lexical  *search.LexicalIndex
	embedder embed.Embedder
	llm      *llm.Client
	sync     *index.Synchronizer
	service  *brain.Service

	lock     *index.DataLock
	cleanups []func()
}

// appOptions controls which parts of the graph a command needs.
type appOptions struct {
	// exclusive takes the data-dir lock; required by anything that writes
	// the stores.
	exclusive bool
	// requireEmbedder fails fast when the embedding backend is down
	// instead of at first use.
	requireEmbedder bool
}

func resolveVault() (string, error) {
	dir := flagVault
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("vault directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("vault path %s is not a directory", abs)
	}
	return abs, nil
}

// newApp loads config, sets up logging, and wires stores, retrieval, and
// the service. Callers must defer a.close().
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	vaultDir, err := resolveVault()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(vaultDir)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Data.Dir = flagDataDir
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}

	a := &app{config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	logCfg := logging.DefaultConfig(cfg.Data.Dir, cfg.LogLevel)
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	a.cleanups = append(a.cleanups, logCleanup)
	slog.SetDefault(logger)

	if opts.exclusive {
		lock := index.NewDataLock(cfg.LockPath())
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, fmt.Errorf("another mindvault process is using %s", cfg.Data.Dir)
		}
		a.lock = lock
	}

	a.metadata, err = store.NewMetadataStore(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	a.vectors = store.NewHNSWStore(cfg.Embeddings.Dimensions)
	vectorPath := cfg.VectorIndexPath()
	if _, err := os.Stat(vectorPath); err == nil {
		if err := a.vectors.Load(vectorPath); err != nil {
			// A corrupt graph is rebuilt on the next sync.
			slog.Warn("could not load vector index, starting empty",
				"path", vectorPath, "error", err)
			a.vectors = store.NewHNSWStore(cfg.Embeddings.Dimensions)
		}
	}

	ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:            cfg.Embeddings.Host,
		Model:           cfg.Embeddings.Model,
		Dimensions:      cfg.Embeddings.Dimensions,
		BatchSize:       cfg.Embeddings.BatchSize,
		SkipHealthCheck: !opts.requireEmbedder,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}
	a.embedder = embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize, a.metadata)

	a.lexical = search.NewLexicalIndex()
	retriever := search.NewRetriever(a.embedder, a.vectors, a.lexical, a.metadata,
		search.RetrieverConfig{
			VectorWeight: cfg.Retrieval.VectorWeight,
			BM25Weight:   cfg.Retrieval.BM25Weight,
			RRFConstant:  cfg.Retrieval.RRFConstant,
		})

	a.llm = llm.New(llm.Config{
		Host:        cfg.LLM.Host,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	a.sync = index.NewSynchronizer(
		vault.NewScanner(vaultDir, cfg.Vault.IgnorePatterns),
		vault.NewParser(cfg.Chunking.MaxChunkChars, cfg.Chunking.MinChunkChars),
		a.embedder, a.vectors, a.metadata, a.lexical, vectorPath)

	var packerOpts []search.PackerOption
	if !cfg.Retrieval.HeaderBreadcrumbs {
		packerOpts = append(packerOpts, search.WithoutHeaderBreadcrumbs())
	}
	a.service = brain.NewService(brain.ServiceConfig{
		Retriever:  retriever,
		Packer:     search.NewPacker(cfg.Retrieval.ContextTokens, cfg.Retrieval.CharsPerToken, packerOpts...),
		Metadata:   a.metadata,
		Vectors:    a.vectors,
		Answerer:   a.llm,
		Sync:       a.sync,
		VaultRoot:  vaultDir,
		MaxResults: cfg.Retrieval.MaxResults,
		RRFK:       cfg.Retrieval.RRFConstant,
		WeightSum:  cfg.Retrieval.VectorWeight + cfg.Retrieval.BM25Weight,
	})

	ok = true
	return a, nil
}

func (a *app) close() {
	if a.lexical != nil {
		_ = a.lexical.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.vectors != nil {
		_ = a.vectors.Close()
	}
	if a.metadata != nil {
		_ = a.metadata.Close()
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// notifier builds the configured notifier.
func (a *app) notifier() brain.Notifier {
	if a.config.Notifications.Enabled && a.config.Notifications.WebhookURL != "" {
		return brain.NewWebhookNotifier(a.config.Notifications.WebhookURL)
	}
	return brain.LogNotifier{}
}

// schedulerConfig translates config durations.
func (a *app) schedulerConfig() brain.SchedulerConfig {
	interval, err := a.config.ReminderInterval()
	if err != nil {
		interval = 15 * time.Minute
	}
	return brain.SchedulerConfig{
		BriefingTime:     a.config.Scheduler.BriefingTime,
		ReminderInterval: interval,
	}
}
