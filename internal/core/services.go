package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/agent"
	"github.com/taskmaster-ai/taskmaster/internal/config"
	"github.com/taskmaster-ai/taskmaster/internal/extract"
	"github.com/taskmaster-ai/taskmaster/internal/store"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
	"github.com/taskmaster-ai/taskmaster/internal/tools"
	"github.com/taskmaster-ai/taskmaster/internal/vectorindex"
)

// Services is built once at startup and handed to the API and CLI.
type Services struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *store.SQLiteStore
	Index     *vectorindex.Index
	LLM       *LLMService
	Tools     *tools.Registry
	Agent     *agent.Agent
	Rules     *tasks.Rules
	Pipeline  *Pipeline
	Tasks     *TaskService
	Breakdown *BreakdownService
}

// NewServices wires every component from cfg.
func NewServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if err := cfg.RequireModel(); err != nil {
		return nil, err
	}

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database ready", zap.String("path", cfg.DatabaseURL))

	llm, err := NewLLMService(ctx, cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbedModel, logger.Named("llm"))
	if err != nil {
		db.Close()
		return nil, err
	}

	var embedder vectorindex.Embedder = llm
	if cfg.EmbedProvider == "ollama" {
		embedder = NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbedModel)
	}
	index, err := vectorindex.Open(cfg.IndexDir, embedder, logger.Named("vectorindex"))
	if err != nil {
		llm.Close()
		db.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	logger.Info("vector index ready",
		zap.String("dir", cfg.IndexDir),
		zap.Int("size", index.Len()),
		zap.Int("dim", index.Dim()))

	rules, err := tasks.LoadRules(cfg.RulesFile)
	if errors.Is(err, tasks.ErrRulesNotFound) {
		logger.Warn("priority rules file not found, no rules will be applied", zap.String("path", cfg.RulesFile))
	} else if err != nil {
		llm.Close()
		db.Close()
		return nil, err
	}

	registry := tools.NewRegistry(logger.Named("tools"))
	registry.MustRegister(tools.DateTool(nil))
	if cfg.TavilyAPIKey != "" {
		registry.MustRegister(tools.WebSearchTool(tools.WebSearchConfig{
			APIKey:     cfg.TavilyAPIKey,
			MaxResults: cfg.WebSearchMaxResults,
		}))
	} else {
		logger.Info("TAVILY_API_KEY not set, web_search tool disabled")
	}

	ag := agent.New(llm, registry,
		agent.WithMaxRounds(cfg.AgentMaxRounds),
		agent.WithLogger(logger.Named("agent")))
	logger.Info("agent ready",
		zap.Strings("tools", registry.Names()),
		zap.Int("max_rounds", ag.MaxRounds()))
	extractor := extract.NewExtractor(ag, logger.Named("extract"))
	pipeline := NewPipeline(db, index, logger.Named("ingest"))

	return &Services{
		Config:    cfg,
		Logger:    logger,
		Store:     db,
		Index:     index,
		LLM:       llm,
		Tools:     registry,
		Agent:     ag,
		Rules:     rules,
		Pipeline:  pipeline,
		Tasks:     NewTaskService(db, extractor, pipeline, llm, rules, logger.Named("tasks")),
		Breakdown: NewBreakdownService(extractor, index, pipeline, rules, logger.Named("breakdown")),
	}, nil
}

// Close releases the model client and the database.
func (s *Services) Close() {
	s.LLM.Close()
	if err := s.Store.Close(); err != nil {
		s.Logger.Warn("error closing database", zap.Error(err))
	}
}
