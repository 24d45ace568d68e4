package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// インデックスバックエンドの種別
const (
	IndexBackendPostgres = "postgres"
	IndexBackendLocal    = "local"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定（INDEX_BACKEND=postgres の場合に使用）
	Database DatabaseConfig

	// OpenAI設定（Embeddings + 生成）
	OpenAI OpenAIConfig

	// インデックス設定
	Index IndexConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// 計測記録の保存先ファイル
	MetricsPath string

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	CompletionModel    string
	// CostPerKiloTokens は1000トークンあたりのコスト（USD）。コスト集計に使用する。
	CostPerKiloTokens float64
}

// IndexConfig はベクトルインデックスの設定
type IndexConfig struct {
	// Backend は "postgres"（pgvector）または "local"（ファイル永続）
	Backend string
	// DataDir は組み込みバックエンドの永続化先ディレクトリ
	DataDir string
}

// ChunkingConfig はチャンク分割の設定
type ChunkingConfig struct {
	Size    int
	Overlap int
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "dreamrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "dreamrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			CompletionModel:    getEnv("OPENAI_COMPLETION_MODEL", "gpt-5"),
			CostPerKiloTokens:  getEnvAsFloat("OPENAI_COST_PER_KILO_TOKENS", 0.002),
		},
		Index: IndexConfig{
			Backend: getEnv("INDEX_BACKEND", IndexBackendLocal),
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		Chunking: ChunkingConfig{
			Size:    getEnvAsInt("CHUNK_SIZE", 1000),
			Overlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		MetricsPath: getEnv("METRICS_PATH", "./data/invocations.jsonl"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Index.Backend != IndexBackendPostgres && cfg.Index.Backend != IndexBackendLocal {
		return nil, fmt.Errorf("invalid INDEX_BACKEND: %q (expected %q or %q)",
			cfg.Index.Backend, IndexBackendPostgres, IndexBackendLocal)
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
