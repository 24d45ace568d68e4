package metricsfile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jinford/dream-rag/internal/core/metrics"
)

// Recorder はJSONL（1行1レコード）ファイルによる metrics.Recorder 実装。
// プロセスをまたいだ集計を可能にするための追記専用ログ。
type Recorder struct {
	path string
	mu   sync.Mutex
}

// NewRecorder は新しい Recorder を作成する。path は記録先ファイル。
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Append は1件の記録をファイル末尾に追記する
func (r *Recorder) Append(ctx context.Context, inv metrics.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append invocation: %w", err)
	}
	return nil
}

// ReadAll は全記録を追記順で返す。ファイルが存在しない場合は空を返す。
// 壊れた行（書き込み途中のクラッシュ等）は読み飛ばす。
func (r *Recorder) ReadAll(ctx context.Context) ([]metrics.Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	var rows []metrics.Invocation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var inv metrics.Invocation
		if err := json.Unmarshal(line, &inv); err != nil {
			continue
		}
		rows = append(rows, inv)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics file: %w", err)
	}
	return rows, nil
}

// コンパイル時の型チェック
var _ metrics.Recorder = (*Recorder)(nil)
