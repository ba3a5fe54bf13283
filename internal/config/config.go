package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the robot service. Values come from the
// environment (optionally seeded from a .env file) with safe defaults for
// a bench robot.
type Config struct {
	RedisHost string
	RedisPort int

	// Control loop
	TickInterval       time.Duration
	SensorPollInterval time.Duration
	SensorFreshness    time.Duration
	DegradedThreshold  int

	// Safety thresholds
	ObstacleClearance  float64 // meters, navigation avoidance
	EmergencyClearance float64 // meters, hard stop
	GasWarn            float64 // ppm
	GasCritical        float64
	TempWarn           float64 // celsius
	TempCritical       float64
	HumidityWarn       float64 // percent
	HumidityCritical   float64
	HazardHoldDown     time.Duration

	// Motion
	MaxSpeed          float64
	TurnSpeed         float64
	StopGrace         time.Duration
	MotionDuration    time.Duration
	PreferManualOnTie bool

	// Conversation
	ListenTimeout time.Duration
	ThinkTimeout  time.Duration

	// Exploration
	ExploreDuration time.Duration
	TurnCooldown    time.Duration
	BackoffDuration time.Duration
	StuckLimit      int
	StuckWindow     time.Duration

	// Reasoning backends
	OllamaURL       string
	OllamaModel     string
	OpenAIKey       string
	OpenAIModel     string
	BackendTimeout  time.Duration
	BackendCooldown time.Duration
	SystemPrompt    string
}

const defaultSystemPrompt = "You are the onboard assistant of a small indoor robot. " +
	"Answer briefly. When the user asks you to move, answer with a short " +
	"confirmation that names the direction. When asked to explore, confirm " +
	"that you will explore."

// Load reads the environment. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		RedisHost: envString("ROBOT_REDIS_HOST", "localhost"),
		RedisPort: envInt("ROBOT_REDIS_PORT", 6379),

		TickInterval:       envDuration("ROBOT_TICK_INTERVAL", 100*time.Millisecond),
		SensorPollInterval: envDuration("ROBOT_SENSOR_POLL_INTERVAL", 100*time.Millisecond),
		SensorFreshness:    envDuration("ROBOT_SENSOR_FRESHNESS", 500*time.Millisecond),
		DegradedThreshold:  envInt("ROBOT_SENSOR_DEGRADED_THRESHOLD", 3),

		ObstacleClearance:  envFloat("ROBOT_OBSTACLE_CLEARANCE", 0.30),
		EmergencyClearance: envFloat("ROBOT_EMERGENCY_CLEARANCE", 0.10),
		GasWarn:            envFloat("ROBOT_GAS_WARN_PPM", 400),
		GasCritical:        envFloat("ROBOT_GAS_CRITICAL_PPM", 800),
		TempWarn:           envFloat("ROBOT_TEMP_WARN_C", 35),
		TempCritical:       envFloat("ROBOT_TEMP_CRITICAL_C", 40),
		HumidityWarn:       envFloat("ROBOT_HUMIDITY_WARN_PCT", 80),
		HumidityCritical:   envFloat("ROBOT_HUMIDITY_CRITICAL_PCT", 90),
		HazardHoldDown:     envDuration("ROBOT_HAZARD_HOLD_DOWN", 5*time.Second),

		MaxSpeed:          envFloat("ROBOT_MAX_SPEED", 0.8),
		TurnSpeed:         envFloat("ROBOT_TURN_SPEED", 0.6),
		StopGrace:         envDuration("ROBOT_STOP_GRACE", 400*time.Millisecond),
		MotionDuration:    envDuration("ROBOT_MOTION_DURATION", 2*time.Second),
		PreferManualOnTie: envBool("ROBOT_PREFER_MANUAL_ON_TIE", true),

		ListenTimeout: envDuration("ROBOT_LISTEN_TIMEOUT", 8*time.Second),
		ThinkTimeout:  envDuration("ROBOT_THINK_TIMEOUT", 30*time.Second),

		ExploreDuration: envDuration("ROBOT_EXPLORE_DURATION", 5*time.Minute),
		TurnCooldown:    envDuration("ROBOT_TURN_COOLDOWN", 800*time.Millisecond),
		BackoffDuration: envDuration("ROBOT_BACKOFF_DURATION", 600*time.Millisecond),
		StuckLimit:      envInt("ROBOT_STUCK_LIMIT", 10),
		StuckWindow:     envDuration("ROBOT_STUCK_WINDOW", 30*time.Second),

		OllamaURL:       envString("ROBOT_OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:     envString("ROBOT_OLLAMA_MODEL", "llama3.2"),
		OpenAIKey:       envString("OPENAI_API_KEY", ""),
		OpenAIModel:     envString("ROBOT_OPENAI_MODEL", "gpt-4o-mini"),
		BackendTimeout:  envDuration("ROBOT_BACKEND_TIMEOUT", 10*time.Second),
		BackendCooldown: envDuration("ROBOT_BACKEND_COOLDOWN", 30*time.Second),
		SystemPrompt:    envString("ROBOT_SYSTEM_PROMPT", defaultSystemPrompt),
	}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
