package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"

	"ghostsync/cli/internal/global"
)

type Config struct {
	TelegramBotToken      string
	AllowedUserID         int64
	TunnelTimeout         time.Duration
	MaxRequestsPerMinute  int
	ScreenshotAutoDelete  bool
	LogLevel              string
	LocalAPIAddr          string
	PromptDecision        string
	PromptDecisionTimeout time.Duration
	TargetApp             string
	ConfigDir             string
	EnvFile               string
}

const (
	PromptDecisionAuto = "auto"
	PromptDecisionAsk  = "ask"
)

const (
	defaultTunnelTimeoutMinutes   = 30
	defaultMaxRequestsPerMinute   = 10
	defaultLocalAPIAddr           = "127.0.0.1:4627"
	defaultPromptDecisionTimeoutS = 60
	defaultTargetApp              = "antigravity"
)

// LoadConfig reads the first .env file found and overlays the process environment.
func LoadConfig() Config {
	configDir, err := global.DefaultConfigDir()
	if err != nil {
		configDir = ".ghostsync"
	}
	envFile := findEnvFile(configDir)
	fileValues := map[string]string{}
	if envFile != "" {
		if values, err := ReadEnvFile(envFile); err == nil {
			fileValues = values
		} else {
			envFile = ""
		}
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileValues[key])
	}
	cfg := fromLookup(lookup)
	cfg.ConfigDir = configDir
	cfg.EnvFile = envFile
	return cfg
}

func fromLookup(get func(string) string) Config {
	allowed, err := strconv.ParseInt(get("ALLOWED_USER_ID"), 10, 64)
	if err != nil || allowed < 0 {
		allowed = 0
	}

	decision := strings.ToLower(get("PROMPT_DECISION"))
	if decision != PromptDecisionAsk {
		decision = PromptDecisionAuto
	}

	localAddr := get("LOCAL_API_ADDR")
	switch {
	case localAddr == "":
		localAddr = defaultLocalAPIAddr
	case strings.EqualFold(localAddr, "off"), localAddr == "-":
		localAddr = ""
	}

	level := get("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	target := strings.ToLower(get("TARGET_APP"))
	if target == "" {
		target = defaultTargetApp
	}

	return Config{
		TelegramBotToken:      get("TELEGRAM_BOT_TOKEN"),
		AllowedUserID:         allowed,
		TunnelTimeout:         time.Duration(positiveIntOrDefault(get("TUNNEL_TIMEOUT_MINUTES"), defaultTunnelTimeoutMinutes)) * time.Minute,
		MaxRequestsPerMinute:  positiveIntOrDefault(get("MAX_REQUESTS_PER_MINUTE"), defaultMaxRequestsPerMinute),
		ScreenshotAutoDelete:  boolOrDefault(get("SCREENSHOT_AUTO_DELETE"), true),
		LogLevel:              level,
		LocalAPIAddr:          localAddr,
		PromptDecision:        decision,
		PromptDecisionTimeout: time.Duration(positiveIntOrDefault(get("PROMPT_DECISION_TIMEOUT_SECONDS"), defaultPromptDecisionTimeoutS)) * time.Second,
		TargetApp:             target,
	}
}

func findEnvFile(configDir string) string {
	candidates := make([]string, 0, 3)
	if override := strings.TrimSpace(os.Getenv("GHOSTSYNC_ENV_FILE")); override != "" {
		candidates = append(candidates, override)
	}
	if execPath, err := os.Executable(); err == nil && execPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	candidates = append(candidates, filepath.Join(configDir, ".env"))
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ReadEnvFile parses key=value lines. Comments, blank and malformed lines are skipped.
func ReadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			continue
		}
		env, err := gotenv.StrictParse(strings.NewReader(line))
		if err != nil {
			continue
		}
		for k, v := range env {
			out[strings.TrimSpace(k)] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func positiveIntOrDefault(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func boolOrDefault(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
