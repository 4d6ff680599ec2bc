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
	APIPort   string
	LogLevel  string
	LogFormat string

	PredictorURL            string
	PredictorTimeoutSeconds int
	OptimizerTimeoutSeconds int
	UploadMaxBytes          int64

	CORSAllowedOrigins []string
	APIRateLimitRPS    float64
	APIRateLimitBurst  int
	APIMaxConnections  int
	APIMaxInFlight     int
	APIInFlightWaitMS  int
	OpenAPIValidation  bool
	MCPHTTPEnabled     bool

	BreakerEnabled            bool
	BreakerMinRequests        int
	BreakerFailureRatio       float64
	BreakerOpenTimeoutSeconds int

	NATSURL     string
	NATSSubject string
}

// Load reads the environment. When CONFIG_FILE names a YAML file, its keys
// (the same names as the environment variables) fill in unset variables.
func Load() (Config, error) {
	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	return Config{
		APIPort:   src.mustEnv("API_PORT", "8080"),
		LogLevel:  src.mustEnv("LOG_LEVEL", "info"),
		LogFormat: src.mustEnv("LOG_FORMAT", "json"),

		PredictorURL:            src.mustEnv("PREDICTOR_URL", "http://localhost:5000"),
		PredictorTimeoutSeconds: src.mustEnvInt("PREDICTOR_TIMEOUT_SECONDS", 60),
		OptimizerTimeoutSeconds: src.mustEnvInt("OPTIMIZER_TIMEOUT_SECONDS", 300),
		UploadMaxBytes:          int64(src.mustEnvInt("UPLOAD_MAX_BYTES", 32<<20)),

		CORSAllowedOrigins: splitList(src.mustEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		APIRateLimitRPS:    src.mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:  src.mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxConnections:  src.mustEnvInt("API_MAX_CONNECTIONS", 256),
		APIMaxInFlight:     src.mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIInFlightWaitMS:  src.mustEnvInt("API_IN_FLIGHT_WAIT_MS", 250),
		OpenAPIValidation:  src.mustEnvBool("OPENAPI_VALIDATION", true),
		MCPHTTPEnabled:     src.mustEnvBool("MCP_HTTP_ENABLED", true),

		BreakerEnabled:            src.mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:        src.mustEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio:       src.mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeoutSeconds: src.mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),

		NATSURL:     src.mustEnv("NATS_URL", ""),
		NATSSubject: src.mustEnv("NATS_SUBJECT", "shipments.pipeline"),
	}, nil
}

func (c Config) PredictorTimeout() time.Duration {
	return time.Duration(c.PredictorTimeoutSeconds) * time.Second
}

func (c Config) OptimizerTimeout() time.Duration {
	return time.Duration(c.OptimizerTimeoutSeconds) * time.Second
}

func (c Config) InFlightWait() time.Duration {
	return time.Duration(c.APIInFlightWaitMS) * time.Millisecond
}

func (c Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.BreakerOpenTimeoutSeconds) * time.Second
}

type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(key)] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("parse config file %s: key %s must be a scalar or a list", path, key)
		default:
			out[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
