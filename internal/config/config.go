// Package config models every configuration key the batch core
// recognises as a single typed struct loaded once at process start,
// rather than read ad hoc at call sites.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"maukemana-backend/internal/model"
)

// Load env vars from a .env file directly, if present.
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production); system
		// environment variables are the source of truth there.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Config is the single typed view over every recognised configuration
// key. It is assembled once (Load) and passed down by value/pointer to
// the components that need it, instead of components calling os.Getenv
// themselves.
type Config struct {
	MaxConcurrentJobs       int
	PosterDownloadRetries   int
	PosterDownloadBackoff   time.Duration
	InterPosterThrottle     time.Duration
	MaxRetriesPerPoster     int

	Jellyfin JellyfinConfig
	Review   ReviewConfig
	Awards   AwardsConfig

	BadgeStyle map[model.BadgeType]BadgeStyleConfig

	AllowedOrigins []string
}

// JellyfinConfig holds the connection details for the Jellyfin client.
type JellyfinConfig struct {
	URL    string
	APIKey string
	UserID string
}

// ReviewConfig configures the review-aggregate extractor.
type ReviewConfig struct {
	SourcesEnabled  []string
	SourcePriority  []string
	MinVotes        int
	MaxBadges       int
}

// AwardsConfig configures the awards extractor.
type AwardsConfig struct {
	ColorScheme    string
	SourcesEnabled []string
}

// BadgeStyleConfig configures badge placement/rendering for one badge type.
type BadgeStyleConfig struct {
	Position        string // one of the nine anchors, or a flush variant
	DynamicSizing   bool
	BaseSize        int
	Spacing         int
	EdgePadding     int
	FontPath        string
	FallbackToText  bool
	AssetDirectory  string
	BackgroundColor string
	Opacity         int // 0-100
	CornerRadius    int
	ShadowBlur      int
	ShadowOffsetX   int
	ShadowOffsetY   int
}

// Load assembles Config from the process environment, applying
// built-in defaults for anything unset.
func Load() *Config {
	cfg := &Config{
		MaxConcurrentJobs:     envInt("MAX_CONCURRENT_JOBS", 4),
		PosterDownloadRetries: envInt("POSTER_DOWNLOAD_RETRIES", 3),
		PosterDownloadBackoff: time.Duration(envInt("POSTER_DOWNLOAD_BACKOFF_INITIAL_MS", 1000)) * time.Millisecond,
		InterPosterThrottle:   time.Duration(envInt("INTER_POSTER_THROTTLE_MS", 100)) * time.Millisecond,
		MaxRetriesPerPoster:   envInt("MAX_RETRIES_PER_POSTER", model.MaxRetries),
		Jellyfin: JellyfinConfig{
			URL:    os.Getenv("JELLYFIN_URL"),
			APIKey: os.Getenv("JELLYFIN_API_KEY"),
			UserID: os.Getenv("JELLYFIN_USER_ID"),
		},
		Review: ReviewConfig{
			SourcesEnabled: envList("REVIEW_SOURCES_ENABLED", []string{"imdb", "rotten_tomatoes", "metacritic"}),
			SourcePriority: envList("REVIEW_SOURCE_PRIORITY", []string{"imdb", "rotten_tomatoes", "metacritic"}),
			MinVotes:       envInt("REVIEW_MIN_VOTES", 100),
			MaxBadges:      envInt("REVIEW_MAX_BADGES", 3),
		},
		Awards: AwardsConfig{
			ColorScheme:    envString("AWARDS_COLOR_SCHEME", "black"),
			SourcesEnabled: envList("AWARDS_SOURCES_ENABLED", []string{"oscars", "emmys", "golden_globes"}),
		},
		AllowedOrigins: GetAllowedOrigins(),
	}
	cfg.BadgeStyle = defaultBadgeStyles()
	return cfg
}

// defaultBadgeStyles returns the built-in placement defaults: Load
// installs them as the badge styles and Validate uses them to fill
// missing entries.
func defaultBadgeStyles() map[model.BadgeType]BadgeStyleConfig {
	return map[model.BadgeType]BadgeStyleConfig{
		model.BadgeAudio: {
			Position: "bottom-right", DynamicSizing: true, BaseSize: 80,
			Spacing: 10, EdgePadding: 20, FallbackToText: true,
		},
		model.BadgeResolution: {
			Position: "bottom-left", DynamicSizing: true, BaseSize: 80,
			Spacing: 10, EdgePadding: 20, FallbackToText: true,
		},
		model.BadgeReview: {
			Position: "top-left", DynamicSizing: true, BaseSize: 60,
			Spacing: 8, EdgePadding: 20, FallbackToText: true,
		},
		model.BadgeAwards: {
			Position: "top-right-flush", DynamicSizing: false, BaseSize: 100,
			Spacing: 6, EdgePadding: 0, FallbackToText: false,
		},
	}
}

// Validate fills safe defaults for any missing badge-style entries and
// reports what it repaired, rather than failing process start.
func (c *Config) Validate() (repaired []string) {
	if c.BadgeStyle == nil {
		c.BadgeStyle = map[model.BadgeType]BadgeStyleConfig{}
	}
	defaults := defaultBadgeStyles()
	for _, bt := range model.AllBadgeTypes {
		if _, ok := c.BadgeStyle[bt]; !ok {
			c.BadgeStyle[bt] = defaults[bt]
			repaired = append(repaired, string(bt)+": badge style defaulted")
		}
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 4
		repaired = append(repaired, "max_concurrent_jobs: defaulted to 4")
	}
	if c.MaxRetriesPerPoster <= 0 || c.MaxRetriesPerPoster > model.MaxRetries {
		c.MaxRetriesPerPoster = model.MaxRetries
		repaired = append(repaired, "max_retries_per_poster: clamped to MaxRetries")
	}
	return repaired
}

// Store models an external persistent key/value configuration store;
// EnvStore is an environment-backed implementation for standalone
// running. Load does not read through a Store: badge styles come from
// defaultBadgeStyles.
type Store interface {
	GetString(key, fallback string) string
	GetInt(key string, fallback int) int
	GetBool(key string, fallback bool) bool
}

// EnvStore is a Store implementation reading directly from the process
// environment, used when no external KV store is wired up.
type EnvStore struct{}

func (EnvStore) GetString(key, fallback string) string { return envString(key, fallback) }
func (EnvStore) GetInt(key string, fallback int) int    { return envInt(key, fallback) }
func (EnvStore) GetBool(key string, fallback bool) bool { return envBool(key, fallback) }

// GetAllowedOrigins returns a slice of allowed CORS origins from the
// environment variable, defaulting to localhost:3000.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
