package bootstrap

import (
	"testing"

	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/ingest"
	"github.com/Raj-Randive/chatdocs/internal/plan"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMaxUploadBytes(t *testing.T) {
	require.Equal(t, int64(16<<20), maxUploadBytes(plan.NewTable("price_pro")))
	require.Zero(t, maxUploadBytes(nil))
}

func TestExtractorSelection(t *testing.T) {
	cfg := &config.Config{}
	require.IsType(t, ingest.PDFExtractor{}, Extractor(cfg))

	cfg.IngestionPDFFallback = true
	ex, ok := Extractor(cfg).(ingest.FallbackExtractor)
	require.True(t, ok)
	require.Len(t, ex, 2)
}

func TestLoadSecretsWithoutProject(t *testing.T) {
	cfg := &config.Config{GeminiAPIKey: "from-env"}
	require.NoError(t, LoadSecrets(t.Context(), cfg, zerolog.Nop()))
	require.Equal(t, "from-env", cfg.GeminiAPIKey)
}
