package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	propertyIDRegexp = regexp.MustCompile(`^P[1-9]\d*$`)
	itemIDRegexp     = regexp.MustCompile(`^Q[1-9]\d*$`)
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourcePath     string
	SourceEncoding string
	CensusYear     int
	SkipInactive   bool
	RowLimit       int
	StartLine      int

	SPARQLEndpoint string
	APIEndpoint    string
	BotUsername    string
	BotPassword    string
	UserAgent      string
	DryRun         bool

	EditIntervalMs   int
	MaxRetries       int
	RequestTimeoutMs int
	MaxLag           int

	INEPProperty  string
	CategoryItems CategoryItems

	ReferenceURL        string
	ReferenceStatedIn   string
	ReferenceAccessDate time.Time

	LedgerEnabled    bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CSVOutputPath   string
	MetricsTextfile string
	LogLevel        string
}

// CategoryItems maps each school classification to the Wikidata item used
// as the value of "instance of".
type CategoryItems struct {
	Urban      string
	Rural      string
	Settlement string
	Indigenous string
	Quilombola string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		SourcePath:     getEnv("SOURCE_PATH", "./data/microdados_ed_basica_2022.csv"),
		SourceEncoding: strings.ToLower(getEnv("SOURCE_ENCODING", "latin1")),
		CensusYear:     getEnvInt("CENSUS_YEAR", 2022),
		SkipInactive:   getEnvBool("SKIP_INACTIVE", true),
		RowLimit:       getEnvInt("ROW_LIMIT", 0),
		StartLine:      getEnvInt("START_LINE", 0),

		SPARQLEndpoint: getEnv("SPARQL_ENDPOINT", "https://query.wikidata.org/sparql"),
		APIEndpoint:    getEnv("API_ENDPOINT", "https://www.wikidata.org/w/api.php"),
		BotUsername:    getEnv("BOT_USERNAME", ""),
		BotPassword:    getEnv("BOT_PASSWORD", ""),
		UserAgent:      getEnv("USER_AGENT", "EscolasWikidataBot/1.0 (https://www.wikidata.org/wiki/Wikidata:WikiProject_Education)"),
		DryRun:         getEnvBool("DRY_RUN", false),

		EditIntervalMs:   getEnvInt("EDIT_INTERVAL_MS", 1000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 30000),
		MaxLag:           getEnvInt("MAXLAG", 5),

		INEPProperty: getEnv("INEP_PROPERTY", "P11704"),
		CategoryItems: CategoryItems{
			Urban:      getEnv("CATEGORY_QID_URBAN", "Q3914"),
			Rural:      getEnv("CATEGORY_QID_RURAL", "Q3914"),
			Settlement: getEnv("CATEGORY_QID_SETTLEMENT", "Q3914"),
			Indigenous: getEnv("CATEGORY_QID_INDIGENOUS", "Q3914"),
			Quilombola: getEnv("CATEGORY_QID_QUILOMBOLA", "Q3914"),
		},

		ReferenceURL:        getEnv("REFERENCE_URL", "https://www.gov.br/inep/pt-br/acesso-a-informacao/dados-abertos/microdados/censo-escolar"),
		ReferenceStatedIn:   getEnv("REFERENCE_STATED_IN", ""),
		ReferenceAccessDate: getEnvDate("REFERENCE_ACCESS_DATE", today()),

		LedgerEnabled:    getEnvBool("LEDGER_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "escolas"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "escolas123"),
		PostgresDB:       getEnv("POSTGRES_DB", "escolas_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CSVOutputPath:   getEnv("CSV_OUTPUT_PATH", "./output/import_results.csv"),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration that would make an import run unsafe.
func (c *Config) Validate() error {
	var errs []error

	if !c.DryRun && (c.BotUsername == "" || c.BotPassword == "") {
		errs = append(errs, errors.New("BOT_USERNAME and BOT_PASSWORD are required unless DRY_RUN is set"))
	}
	if !propertyIDRegexp.MatchString(c.INEPProperty) {
		errs = append(errs, fmt.Errorf("INEP_PROPERTY %q is not a property id", c.INEPProperty))
	}
	for name, qid := range map[string]string{
		"CATEGORY_QID_URBAN":      c.CategoryItems.Urban,
		"CATEGORY_QID_RURAL":      c.CategoryItems.Rural,
		"CATEGORY_QID_SETTLEMENT": c.CategoryItems.Settlement,
		"CATEGORY_QID_INDIGENOUS": c.CategoryItems.Indigenous,
		"CATEGORY_QID_QUILOMBOLA": c.CategoryItems.Quilombola,
	} {
		if !itemIDRegexp.MatchString(qid) {
			errs = append(errs, fmt.Errorf("%s %q is not an item id", name, qid))
		}
	}
	if c.ReferenceStatedIn != "" && !itemIDRegexp.MatchString(c.ReferenceStatedIn) {
		errs = append(errs, fmt.Errorf("REFERENCE_STATED_IN %q is not an item id", c.ReferenceStatedIn))
	}
	if c.ReferenceStatedIn == "" && c.ReferenceURL == "" {
		errs = append(errs, errors.New("one of REFERENCE_URL or REFERENCE_STATED_IN is required"))
	}
	if c.SourceEncoding != "latin1" && c.SourceEncoding != "utf8" {
		errs = append(errs, fmt.Errorf("SOURCE_ENCODING %q must be latin1 or utf8", c.SourceEncoding))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// EditInterval returns the minimum delay between two write calls.
func (c *Config) EditInterval() time.Duration {
	return time.Duration(c.EditIntervalMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDate(key string, fallback time.Time) time.Time {
	if val := os.Getenv(key); val != "" {
		t, err := time.Parse(time.DateOnly, val)
		if err == nil {
			return t
		}
		log.Printf("[config] Ignoring %s=%q: expected YYYY-MM-DD", key, val)
	}
	return fallback
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
