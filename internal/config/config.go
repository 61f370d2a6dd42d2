package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	LogLevel   string `yaml:"log_level"`

	// Storage
	DatabasePath string `yaml:"database_path"`
	UploadsDir   string `yaml:"uploads_dir"`
	CachePath    string `yaml:"cache_path"`

	// LLM
	LLMProvider   string        `yaml:"llm_provider"`
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	OpenAIModel   string        `yaml:"openai_model"`
	OllamaURL     string        `yaml:"ollama_url"`
	OllamaModel   string        `yaml:"ollama_model"`
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	LLMTimeout    time.Duration `yaml:"llm_timeout"`

	// upstream throttle
	LLMRateEvery time.Duration `yaml:"llm_rate_every"`
	LLMRateBurst int           `yaml:"llm_rate_burst"`

	// Limits
	MaxUploadBytes       int64 `yaml:"max_upload_bytes"`
	MaxConcurrentOCR     int64 `yaml:"max_concurrent_ocr"`
	PreviousContextChars int   `yaml:"previous_context_chars"`
	DetectLayout         bool  `yaml:"detect_layout"`

	// rate limiting (per IP)
	RateLimitEvery time.Duration `yaml:"rate_limit_every"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	// forwarding headers are only trusted from these IPs or CIDRs
	TrustedProxies []string `yaml:"trusted_proxies"`

	AllowPrivateImageURLs bool `yaml:"allow_private_image_urls"`
}

// Load reads the configuration from the environment, then applies the YAML
// file named by WAGNER_CONFIG on top when it is set
func Load() (Config, error) {
	cfg := Config{
		Port:       envStr("PORT", "5000"),
		CORSOrigin: envStr("CORS_ORIGIN", "*"),
		LogLevel:   envStr("LOG_LEVEL", "info"),

		DatabasePath: envStr("DATABASE_PATH", "wagner.db"),
		UploadsDir:   envStr("UPLOADS_DIR", "uploads"),
		CachePath:    envStr("CACHE_PATH", ""),

		LLMProvider:   strings.ToLower(envStr("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:  envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL: envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:   envStr("OPENAI_MODEL", "gpt-4o"),
		OllamaURL:     envStr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envStr("OLLAMA_MODEL", "llava"),
		GeminiAPIKey:  envStr("GEMINI_API_KEY", ""),
		GeminiModel:   envStr("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMTimeout:    envDur("LLM_TIMEOUT", 120*time.Second),

		// 0 turns the upstream limiter off
		LLMRateEvery: envDurOrZero("LLM_RATE_EVERY", 200*time.Millisecond),
		LLMRateBurst: envInt("LLM_RATE_BURST", 5),

		MaxUploadBytes:       int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxConcurrentOCR:     int64(envInt("MAX_CONCURRENT_OCR", 3)),
		PreviousContextChars: envInt("PREVIOUS_CONTEXT_CHARS", 300),
		DetectLayout:         envBool("DETECT_LAYOUT", true),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 500*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),
		TrustedProxies: envList("TRUSTED_PROXIES"),

		AllowPrivateImageURLs: envBool("ALLOW_PRIVATE_IMAGE_URLS", false),
	}

	if path := envStr("WAGNER_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// mergeFile overwrites the fields present in the YAML file at path
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	return nil
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for the ollama provider")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want openai, ollama or gemini)", c.LLMProvider)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxConcurrentOCR <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_OCR must be positive")
	}
	if c.PreviousContextChars <= 0 {
		return fmt.Errorf("PREVIOUS_CONTEXT_CHARS must be positive")
	}
	return nil
}

// Model returns the model name configured for the selected provider
func (c Config) Model() string {
	switch c.LLMProvider {
	case "ollama":
		return c.OllamaModel
	case "gemini":
		return c.GeminiModel
	default:
		return c.OpenAIModel
	}
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// envDurOrZero is envDur but keeps an explicit zero
func envDurOrZero(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// envList splits a comma-separated variable, dropping empty entries
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
