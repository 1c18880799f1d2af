package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_USERNAME", "")
	t.Setenv("REFERENCE_ACCESS_DATE", "")

	cfg := Load()

	assert.Equal(t, "latin1", cfg.SourceEncoding)
	assert.Equal(t, 2022, cfg.CensusYear)
	assert.True(t, cfg.SkipInactive)
	assert.False(t, cfg.LedgerEnabled)
	assert.Equal(t, "https://query.wikidata.org/sparql", cfg.SPARQLEndpoint)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, time.Second, cfg.EditInterval())
	assert.Equal(t, time.UTC, cfg.ReferenceAccessDate.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOURCE_ENCODING", "UTF8")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("ROW_LIMIT", "25")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("REFERENCE_ACCESS_DATE", "2023-02-08")
	t.Setenv("CATEGORY_QID_INDIGENOUS", "Q42")

	cfg := Load()

	assert.Equal(t, "utf8", cfg.SourceEncoding)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 25, cfg.RowLimit)
	assert.Equal(t, 3, cfg.MaxRetries, "invalid ints fall back to the default")
	assert.Equal(t, time.Date(2023, 2, 8, 0, 0, 0, 0, time.UTC), cfg.ReferenceAccessDate)
	assert.Equal(t, "Q42", cfg.CategoryItems.Indigenous)
}

func TestValidate(t *testing.T) {
	t.Setenv("DRY_RUN", "")
	valid := func() *Config {
		cfg := Load()
		cfg.BotUsername = "Bot@import"
		cfg.BotPassword = "secret"
		return cfg
	}

	t.Run("accepts defaults with credentials", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("requires credentials outside dry run", func(t *testing.T) {
		cfg := valid()
		cfg.BotPassword = ""
		assert.ErrorContains(t, cfg.Validate(), "BOT_PASSWORD")

		cfg.DryRun = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects malformed ids", func(t *testing.T) {
		cfg := valid()
		cfg.INEPProperty = "11704"
		cfg.CategoryItems.Rural = "rural"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "INEP_PROPERTY")
		assert.Contains(t, err.Error(), "CATEGORY_QID_RURAL")
	})

	t.Run("rejects unknown encoding", func(t *testing.T) {
		cfg := valid()
		cfg.SourceEncoding = "utf16"
		assert.ErrorContains(t, cfg.Validate(), "SOURCE_ENCODING")
	})
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresDB:       "d",
		PostgresSSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", cfg.DSN())
}
