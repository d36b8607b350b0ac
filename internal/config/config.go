package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/tracking"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// gRPC health endpoint, disabled when 0
	GRPCHealthPort int

	// NATS (for crossing events and job results)
	// Default: nats://localhost:4222 (works with Docker Compose setup)
	// Docker: Use nats://nats:4222 if running worker in Docker
	NatsEnabled          bool
	NatsURL              string
	NatsConnectTimeout   time.Duration
	NatsReconnectWait    time.Duration
	NatsMaxReconnects    int
	NatsCrossingsSubject string
	NatsResultsSubject   string

	// Uploads and jobs
	UploadDir         string
	MaxUploadBytes    int64
	MaxConcurrentJobs int
	JobRetention      time.Duration
	CORSAllowOrigins  []string

	// Tracking
	MatchRadius  float64
	LinePosition int
	ZoneOffset   int
	ExpiryFrames int

	// Motion detection
	MinContourArea float64
	MinBoxWidth    int
	MinBoxHeight   int
	ROIMinX        int
	ROIMinY        int
	ROIMaxX        int
	ROIMaxY        int
	BlurKernelSize int
	BlurSigma      float64
	MOG2History    int
	MOG2VarThresh  float64
	MorphKernel    int

	// Pipeline pacing, 0 = as fast as frames decode
	FrameDelay time.Duration

	// Annotated output, disabled when empty
	AnnotateOutputDir string

	// Swagger Configuration
	SwaggerHost string
	SwaggerPort int

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "counter-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		GRPCHealthPort: getEnvInt("GRPC_HEALTH_PORT", 0),

		// NATS (configured for Docker Compose setup)
		NatsEnabled:          getEnvBool("NATS_ENABLED", false),
		NatsURL:              getNatsURL(),
		NatsConnectTimeout:   getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:    getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:    getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		NatsCrossingsSubject: getEnv("NATS_CROSSINGS_SUBJECT", "vehicles.crossings"),
		NatsResultsSubject:   getEnv("NATS_RESULTS_SUBJECT", "vehicles.results"),

		UploadDir:         getEnv("UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 512<<20)),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 2),
		JobRetention:      getEnvDuration("JOB_RETENTION", time.Hour),
		CORSAllowOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		MatchRadius:  getEnvFloat("MATCH_RADIUS", 50),
		LinePosition: getEnvInt("LINE_POSITION", 550),
		ZoneOffset:   getEnvInt("ZONE_OFFSET", 15),
		ExpiryFrames: getEnvInt("EXPIRY_FRAMES", 10),

		MinContourArea: getEnvFloat("MIN_CONTOUR_AREA", 500),
		MinBoxWidth:    getEnvInt("MIN_BOX_WIDTH", 80),
		MinBoxHeight:   getEnvInt("MIN_BOX_HEIGHT", 80),
		ROIMinX:        getEnvInt("ROI_MIN_X", 0),
		ROIMinY:        getEnvInt("ROI_MIN_Y", 200),
		ROIMaxX:        getEnvInt("ROI_MAX_X", 1200),
		ROIMaxY:        getEnvInt("ROI_MAX_Y", 700),
		BlurKernelSize: getEnvInt("BLUR_KERNEL_SIZE", 3),
		BlurSigma:      getEnvFloat("BLUR_SIGMA", 5),
		MOG2History:    getEnvInt("MOG2_HISTORY", 200),
		MOG2VarThresh:  getEnvFloat("MOG2_VAR_THRESHOLD", 16),
		MorphKernel:    getEnvInt("MORPH_KERNEL_SIZE", 5),

		FrameDelay: getEnvDuration("FRAME_DELAY", 0),

		AnnotateOutputDir: getEnv("ANNOTATE_OUTPUT_DIR", ""),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost"),
		SwaggerPort: getEnvInt("SWAGGER_PORT", 8000),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Tracking returns the tracker parameters
func (c *Config) Tracking() tracking.Config {
	return tracking.Config{
		MatchRadius:  c.MatchRadius,
		LinePosition: c.LinePosition,
		ZoneOffset:   c.ZoneOffset,
		ExpiryFrames: c.ExpiryFrames,
	}
}

// SizeFilter returns the contour filter applied before tracking
func (c *Config) SizeFilter() models.SizeFilter {
	return models.SizeFilter{
		MinContourArea: c.MinContourArea,
		MinWidth:       c.MinBoxWidth,
		MinHeight:      c.MinBoxHeight,
	}
}

// ROI returns the region of interest for motion detection. An empty rectangle disables it.
func (c *Config) ROI() image.Rectangle {
	return image.Rect(c.ROIMinX, c.ROIMinY, c.ROIMaxX, c.ROIMaxY)
}

// Validate reports every out-of-range value in one error
func (c *Config) Validate() error {
	var errs []error

	if err := c.Tracking().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SizeFilter().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.GRPCHealthPort < 0 || c.GRPCHealthPort > 65535 {
		errs = append(errs, fmt.Errorf("grpc health port out of range: %d", c.GRPCHealthPort))
	}
	if c.MaxConcurrentJobs < 1 {
		errs = append(errs, fmt.Errorf("max concurrent jobs must be >= 1, got %d", c.MaxConcurrentJobs))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be > 0, got %d", c.MaxUploadBytes))
	}
	if c.BlurKernelSize < 1 || c.BlurKernelSize%2 == 0 {
		errs = append(errs, fmt.Errorf("blur kernel size must be a positive odd number, got %d", c.BlurKernelSize))
	}
	if c.MorphKernel < 1 {
		errs = append(errs, fmt.Errorf("morph kernel size must be >= 1, got %d", c.MorphKernel))
	}
	if c.MOG2History < 1 {
		errs = append(errs, fmt.Errorf("mog2 history must be >= 1, got %d", c.MOG2History))
	}
	if c.FrameDelay < 0 {
		errs = append(errs, fmt.Errorf("frame delay must be >= 0, got %s", c.FrameDelay))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload dir is required"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer in environment, using default")
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number in environment, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration in environment, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
