package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for advisord. Values are read from
// ADVISOR_-prefixed environment variables, with a .env file loaded first so
// local development works without exporting anything.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	DataDir  string `envconfig:"DATA_DIR" default:"data"`
	DBPath   string `envconfig:"DB_PATH" default:""`

	AgentID string `envconfig:"AGENT_ID" default:"advisor"`

	LLMProvider   string `envconfig:"LLM_PROVIDER" default:"openai-chat"`
	LLMModel      string `envconfig:"LLM_MODEL" default:""`
	LLMSmallModel string `envconfig:"LLM_SMALL_MODEL" default:""`
	LLMAPIKey     string `envconfig:"LLM_API_KEY" default:""`

	RPCURL          string `envconfig:"RPC_URL" default:"https://sepolia-rpc.scroll.io"`
	ChainID         int64  `envconfig:"CHAIN_ID" default:"534351"`
	AgentPrivateKey string `envconfig:"AGENT_PRIVATE_KEY" default:""`

	CustodyBaseURL  string `envconfig:"CUSTODY_BASE_URL" default:"http://localhost:3001/api"`
	ExecutorBaseURL string `envconfig:"EXECUTOR_BASE_URL" default:""`

	// Applied to every outbound LLM, custody, executor, and RPC call.
	ExternalCallTimeout time.Duration `envconfig:"EXTERNAL_CALL_TIMEOUT" default:"30s"`
}

func Load() (Config, error) {
	loadDotEnv(".env")
	var cfg Config
	if err := envconfig.Process("advisor", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "advisor.db")
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
