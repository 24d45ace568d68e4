package interpret

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/dream-rag/internal/core/metrics"
	"github.com/jinford/dream-rag/internal/core/retrieval"
)

const (
	// generationTemperature は解釈生成時の温度パラメータ
	generationTemperature = 0.7
	// followUpSourceLimit は追加質問時に取得する出典数
	followUpSourceLimit = 3
)

// Service は夢解釈のオーケストレーションを提供する。
// 1リクエスト = 検索 → プロンプト構築 → 生成 → 解析 → 計測記録。
type Service struct {
	retrieval         *retrieval.Service
	llm               LLMClient
	recorder          metrics.Recorder
	counter           TokenCounter
	costPerKiloTokens float64
	logger            *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*Service)

// WithInterpretLogger は Service にロガーを設定する
func WithInterpretLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenCounter はプロンプト構築に使うトークンカウンタを設定する
func WithTokenCounter(counter TokenCounter) ServiceOption {
	return func(s *Service) {
		s.counter = counter
	}
}

// WithCostPerKiloTokens は1000トークンあたりのコスト（USD）を設定する
func WithCostPerKiloTokens(rate float64) ServiceOption {
	return func(s *Service) {
		s.costPerKiloTokens = rate
	}
}

// NewService は新しい Service を作成する
func NewService(ret *retrieval.Service, llm LLMClient, recorder metrics.Recorder, opts ...ServiceOption) *Service {
	svc := &Service{
		retrieval: ret,
		llm:       llm,
		recorder:  recorder,
		counter:   charEstimateCounter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.counter == nil {
		svc.counter = charEstimateCounter{}
	}
	return svc
}

// Interpret は夢テキストの構造化解釈を実行する。
// 出典検索の失敗は空の出典として続行するが、生成と解析の失敗は
// エラーとして返し、いずれの場合も計測を記録する。
func (s *Service) Interpret(ctx context.Context, params Params) (*Result, error) {
	if strings.TrimSpace(params.DreamText) == "" {
		return nil, ErrEmptyDreamText
	}
	if !ValidAnalysisType(params.Mode) {
		return nil, fmt.Errorf("invalid analysis type: %q", params.Mode)
	}

	limit := params.SourceLimit
	if limit <= 0 {
		limit = retrieval.DefaultSourceLimit
	}
	citations := s.retrieval.Search(ctx, params.DreamText, limit, "")

	prompt := BuildInterpretPrompt(params.DreamText, params.Context, params.Mode, citations, s.counter)

	start := time.Now()
	resp, err := s.llm.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokensFor(params.Mode),
		Temperature: generationTemperature,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		s.record(ctx, s.newInvocation(resp, latency, metrics.StatusError))
		return nil, fmt.Errorf("dream interpretation: %w", err)
	}

	result, err := ParseResponse(resp.Content, params.Mode)
	if err != nil {
		s.record(ctx, s.newInvocation(resp, latency, metrics.StatusError))
		return nil, fmt.Errorf("dream interpretation: %w", err)
	}

	inv := s.newInvocation(resp, latency, metrics.StatusSuccess)
	s.record(ctx, inv)

	result.Citations = citations
	result.Metrics = inv

	s.logger.Info("dream interpretation completed",
		"mode", params.Mode,
		"citations", len(citations),
		"tokens_used", resp.TokensUsed,
		"latency_ms", latency,
	)
	return result, nil
}

// FollowUp は解釈済みの夢に対する追加質問に回答する。
// 出典検索には夢テキストと質問を結合したクエリを使う。
func (s *Service) FollowUp(ctx context.Context, params FollowUpParams) (*FollowUpResult, error) {
	if strings.TrimSpace(params.DreamText) == "" {
		return nil, ErrEmptyDreamText
	}
	if strings.TrimSpace(params.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	combined := params.DreamText + " " + params.Question
	citations := s.retrieval.Search(ctx, combined, followUpSourceLimit, "")

	prompt := BuildFollowUpPrompt(params, citations, s.counter)

	start := time.Now()
	resp, err := s.llm.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   followUpMaxTokens,
		Temperature: generationTemperature,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		s.record(ctx, s.newInvocation(resp, latency, metrics.StatusError))
		return nil, fmt.Errorf("follow-up answer: %w", err)
	}

	inv := s.newInvocation(resp, latency, metrics.StatusSuccess)
	s.record(ctx, inv)

	return &FollowUpResult{
		Answer:     strings.TrimSpace(resp.Content),
		Confidence: defaultConfidence,
		Citations:  citations,
		Metrics:    inv,
	}, nil
}

func (s *Service) newInvocation(resp CompletionResponse, latencyMs int64, status metrics.Status) metrics.Invocation {
	return metrics.Invocation{
		TokensUsed:   resp.TokensUsed,
		LatencyMs:    latencyMs,
		CostUSD:      float64(resp.TokensUsed) * s.costPerKiloTokens / 1000,
		ModelVersion: resp.Model,
		Status:       status,
		RecordedAt:   time.Now().UTC(),
	}
}

// record は計測記録の保存失敗でリクエストを失敗させない
func (s *Service) record(ctx context.Context, inv metrics.Invocation) {
	if err := s.recorder.Append(ctx, inv); err != nil {
		s.logger.Warn("failed to record invocation metrics", "error", err)
	}
}
