package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "mistral-small-latest", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Generation.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, 10, cfg.Chat.HistoryWindow)
	assert.Equal(t, "bottom-right", cfg.Widget.Position)
	assert.Equal(t, "demo-hospital", cfg.Widget.HospitalID)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9000"
database:
  driver: "mongo"
hospital:
  hospital_id: "city-clinic"
  departments: ["ENT", "Cardiology"]
  consultation_fees:
    - department: "ENT"
      fee: "PKR 1500"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("MEDIDESK_LLM_API_KEY", "secret-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Database.Driver)
	assert.Equal(t, "secret-key", cfg.LLM.APIKey)
	assert.Equal(t, "city-clinic", cfg.Hospital.HospitalID)
	assert.Equal(t, []string{"ENT", "Cardiology"}, cfg.Hospital.Departments)
	require.Len(t, cfg.Hospital.ConsultationFees, 1)
	assert.Equal(t, "PKR 1500", cfg.Hospital.ConsultationFees[0].Fee)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("MEDIDESK_DATABASE_DRIVER", "sqlite")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
