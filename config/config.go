package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	LogEnv       string
	// Store selects the backing store: "mongo" or "memory"
	Store string

	AdminIDs          []string
	AdminUsername     string
	AdminPasswordHash string
	JWTSecret         string

	AssignmentPolicy  string
	HandlePrefix      string
	HandleDigits      int
	HandleMaxAttempts int
	DefaultLanguage   string
	CategoriesFile    string

	ExportSchedule  string
	ExportEmail     string
	ExportFromEmail string
	SendgridAPIKey  string

	QueryTimeout time.Duration
}

// New sets up all config related services
func New() *Config {
	logEnv := envOr("LOG_ENV", "production")

	//setup zap logger and replace default logger
	logger, err := setLogger(logEnv)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:               os.Getenv("DB_URI"),
		DatabaseName:      envOr("DB_NAME", "counsel"),
		BaseURL:           os.Getenv("BASE_URL"),
		Port:              envOr("PORT", "8080"),
		LogEnv:            logEnv,
		Store:             envOr("STORE", "mongo"),
		AdminIDs:          splitList(os.Getenv("ADMIN_IDS")),
		AdminUsername:     envOr("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AssignmentPolicy:  envOr("ASSIGNMENT_POLICY", "least_loaded"),
		HandlePrefix:      envOr("HANDLE_PREFIX", "User-"),
		HandleDigits:      envInt("HANDLE_DIGITS", 4),
		HandleMaxAttempts: envInt("HANDLE_MAX_ATTEMPTS", 100),
		DefaultLanguage:   envOr("DEFAULT_LANGUAGE", "en"),
		CategoriesFile:    os.Getenv("CATEGORIES_FILE"),
		ExportSchedule:    envOr("EXPORT_SCHEDULE", "0 3 * * *"),
		ExportEmail:       os.Getenv("EXPORT_EMAIL"),
		ExportFromEmail:   envOr("EXPORT_FROM_EMAIL", "no-reply@counsel-relay.app"),
		SendgridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		QueryTimeout:      envDuration("QUERY_TIMEOUT", 10*time.Second),
	}
}

// IsAdmin reports whether the party id is listed in ADMIN_IDS
func (c *Config) IsAdmin(partyID string) bool {
	for _, id := range c.AdminIDs {
		if id == partyID {
			return true
		}
	}
	return false
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	b, _ := json.Marshal(resp)
	w.Write(b)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
