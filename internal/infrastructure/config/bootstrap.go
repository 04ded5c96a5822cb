package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "support-bot"

// HomeDir returns the global configuration directory, ~/.support-bot.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap creates dir with a commented default config.yaml. Existing
// files are never overwritten. It returns the config path.
func Bootstrap(dir string, logger *zap.Logger) (string, error) {
	if dir == "" {
		dir = HomeDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		logger.Debug("Config already present", zap.String("path", path))
		return path, nil
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("Default configuration written", zap.String("path", path))
	return path, nil
}

const defaultConfig = `# Support chatbot configuration.
# Every key can be overridden with SUPPORT_<SECTION>_<KEY>, e.g. SUPPORT_SERVER_PORT=9090.

server:
  host: 0.0.0.0
  port: 8080
  mode: release                # debug | release
  cors_origins: ["*"]
  shutdown_timeout: 10s

database:
  type: sqlite                 # sqlite | postgres | mysql
  dsn: support.db
  log_level: warn              # silent | error | warn | info
  seed_demo_data: false

log:
  level: info                  # debug | info | warn | error
  format: json                 # json | console

llm:
  default_model: gpt-4o-mini
  max_tokens: 1000
  temperature: 0.7
  max_tool_round_trips: 5
  tool_timeout: 30s
  max_retries: 2
  # Tried in order; a provider whose circuit is open is skipped.
  # OPENAI_API_KEY is used when this list is empty.
  providers: []
  # providers:
  #   - name: openai
  #     type: openai
  #     base_url: https://api.openai.com/v1
  #     api_key: sk-...

embedding:
  enabled: true
  model: text-embedding-3-small

knowledge:
  file: ""                     # YAML articles; empty = built-in set
  watch: false                 # reload the file on change

rate_limit:
  enabled: true
  max_requests: 10
  window: 60s
  store: memory                # memory | redis
  sweep_spec: "@every 60s"

redis:
  addr: ""

prompt:
  base_file: ""                # markdown system prompt; empty = built-in policy
`
