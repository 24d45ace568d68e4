package container

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jinford/dream-rag/internal/core/index"
	"github.com/jinford/dream-rag/internal/core/ingestion"
	"github.com/jinford/dream-rag/internal/core/ingestion/chunk"
	"github.com/jinford/dream-rag/internal/core/interpret"
	"github.com/jinford/dream-rag/internal/core/metrics"
	"github.com/jinford/dream-rag/internal/core/retrieval"
	"github.com/jinford/dream-rag/internal/infra/localindex"
	"github.com/jinford/dream-rag/internal/infra/metricsfile"
	"github.com/jinford/dream-rag/internal/infra/openai"
	"github.com/jinford/dream-rag/internal/infra/postgres"
	"github.com/jinford/dream-rag/internal/platform/config"
	"github.com/jinford/dream-rag/internal/platform/database"
)

// localIndexFile は組み込みバックエンドの永続化ファイル名
const localIndexFile = "index.gob"

// Container はアプリケーションの依存関係を保持する
type Container struct {
	RetrievalService *retrieval.Service
	InterpretService *interpret.Service
	IngestionService *ingestion.Service
	Index            index.Index
	Recorder         metrics.Recorder

	logger   *slog.Logger
	database *database.Database
}

type containerOptions struct {
	logger   *slog.Logger
	embedder openaiEmbedder
	llm      interpret.LLMClient
	index    index.Index
	recorder metrics.Recorder
}

// openaiEmbedder は取り込みと検索の両方で使う Embedder の合成インターフェース
type openaiEmbedder interface {
	retrieval.Embedder
	ingestion.BatchEmbedder
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder interface {
	retrieval.Embedder
	ingestion.BatchEmbedder
}) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は生成モデルクライアントを差し替える
func WithContainerLLMClient(llm interpret.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llm = llm
	}
}

// WithContainerIndex はベクトルインデックスを差し替える
func WithContainerIndex(idx index.Index) ContainerOption {
	return func(opts *containerOptions) {
		opts.index = idx
	}
}

// WithContainerRecorder は計測記録の保存先を差し替える
func WithContainerRecorder(recorder metrics.Recorder) ContainerOption {
	return func(opts *containerOptions) {
		opts.recorder = recorder
	}
}

// NewContainer は設定からコンテナを生成する。
// インデックスの初期化（スキーマ作成・ファイル読み込み）は最初の操作まで遅延される。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
	}

	// ベクトルインデックス（バックエンド選択）
	var db *database.Database
	idx := options.index
	if idx == nil {
		switch cfg.Index.Backend {
		case config.IndexBackendPostgres:
			var err error
			db, err = database.New(ctx, database.ConnectionParams{
				Host:     cfg.Database.Host,
				Port:     cfg.Database.Port,
				User:     cfg.Database.User,
				Password: cfg.Database.Password,
				DBName:   cfg.Database.DBName,
				SSLMode:  cfg.Database.SSLMode,
			})
			if err != nil {
				return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
			}
			idx = postgres.NewIndex(db.Pool, cfg.OpenAI.EmbeddingDimension)
		case config.IndexBackendLocal:
			idx = localindex.NewIndex(filepath.Join(cfg.Index.DataDir, localIndexFile), cfg.OpenAI.EmbeddingDimension)
		default:
			return nil, fmt.Errorf("unknown index backend: %q", cfg.Index.Backend)
		}
	}

	// 計測記録（JSONLファイル）
	recorder := options.recorder
	if recorder == nil {
		recorder = metricsfile.NewRecorder(cfg.MetricsPath)
	}

	// 生成モデルクライアント (OpenAI)
	llm := options.llm
	if llm == nil {
		client, err := openai.NewClient(cfg.OpenAI.APIKey, openai.WithModel(cfg.OpenAI.CompletionModel))
		if err != nil {
			return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
		}
		llm = client
	}

	// TokenCounter (tiktoken)
	tokenCounter, err := openai.NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
	}

	// Chunker
	chunker, err := chunk.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	retrievalService := retrieval.NewService(idx, embedder, retrieval.WithRetrievalLogger(options.logger))

	interpretService := interpret.NewService(
		retrievalService,
		llm,
		recorder,
		interpret.WithInterpretLogger(options.logger),
		interpret.WithTokenCounter(tokenCounter),
		interpret.WithCostPerKiloTokens(cfg.OpenAI.CostPerKiloTokens),
	)

	ingestionService := ingestion.NewService(
		idx,
		embedder,
		chunker,
		ingestion.WithIngestionLogger(options.logger),
	)

	return &Container{
		RetrievalService: retrievalService,
		InterpretService: interpretService,
		IngestionService: ingestionService,
		Index:            idx,
		Recorder:         recorder,
		logger:           options.logger,
		database:         db,
	}, nil
}

// Close は内部リソースを解放する。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Index != nil {
		if err := c.Index.Close(); err != nil {
			c.Logger().Warn("failed to close index", "error", err)
		}
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
