package metrics

import (
	"context"
	"math"
	"sync"
	"time"
)

// Status は生成呼び出しの結果ステータス
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Invocation は生成モデル呼び出し1回分の記録。追記専用で後から変更しない。
type Invocation struct {
	TokensUsed   int       `json:"tokens_used"`
	LatencyMs    int64     `json:"latency_ms"`
	CostUSD      float64   `json:"cost_usd"`
	ModelVersion string    `json:"model_version"`
	Status       Status    `json:"status"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Recorder は呼び出し記録の保存先インターフェース。
// メモリ実装（テスト用）と JSONL ファイル実装がある。
type Recorder interface {
	// Append は1件の記録を追加する
	Append(ctx context.Context, inv Invocation) error
	// ReadAll は全記録を追加順で返す
	ReadAll(ctx context.Context) ([]Invocation, error)
}

// Summary は全記録に対する読み取り時集計。
// 低頻度の内部分析用ビューのため、増分カウンタは持たず毎回全行を走査する。
type Summary struct {
	TotalCount    int     `json:"total_count"`
	SuccessCount  int     `json:"success_count"`
	ErrorCount    int     `json:"error_count"`
	SuccessRate   float64 `json:"success_rate"`    // %（小数第2位まで）
	MeanLatencyMs int64   `json:"mean_latency_ms"` // 整数msに丸め
	TotalCostUSD  float64 `json:"total_cost_usd"`  // 小数第4位まで
	MeanCostUSD   float64 `json:"mean_cost_usd"`   // 小数第4位まで
	TotalTokens   int     `json:"total_tokens"`
}

// Aggregate は記録の集計を計算する
func Aggregate(invocations []Invocation) Summary {
	summary := Summary{TotalCount: len(invocations)}
	if len(invocations) == 0 {
		return summary
	}

	var totalLatency int64
	var totalCost float64
	for _, inv := range invocations {
		if inv.Status == StatusSuccess {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
		totalLatency += inv.LatencyMs
		totalCost += inv.CostUSD
		summary.TotalTokens += inv.TokensUsed
	}

	summary.SuccessRate = round2(float64(summary.SuccessCount) / float64(summary.TotalCount) * 100)
	summary.MeanLatencyMs = int64(math.Round(float64(totalLatency) / float64(summary.TotalCount)))
	summary.TotalCostUSD = round4(totalCost)
	summary.MeanCostUSD = round4(totalCost / float64(summary.TotalCount))
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// MemoryRecorder はメモリ上の Recorder 実装。単一プロセス内の利用とテスト向け。
type MemoryRecorder struct {
	mu   sync.Mutex
	rows []Invocation
}

// NewMemoryRecorder は新しい MemoryRecorder を作成する
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Append(ctx context.Context, inv Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, inv)
	return nil
}

func (r *MemoryRecorder) ReadAll(ctx context.Context) ([]Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

var _ Recorder = (*MemoryRecorder)(nil)
