package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ANS: ANSConfig{
			Token:       "abc123",
			BaseURL:     "https://ans.app/",
			CoursesPath: "routing/courses/2024",
		},
		Archive: ArchiveConfig{
			BasePath:      "./archive",
			Year:          "latest",
			GradingScheme: SchemeCurrent,
		},
		HTTP:    HTTPConfig{TimeoutSeconds: 15},
		Storage: StorageConfig{Provider: "local"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsMissingToken(t *testing.T) {
	cfg := validConfig()
	cfg.ANS.Token = "  "
	require.Error(t, cfg.Validate())
}

func TestValidateYear(t *testing.T) {
	for _, year := range []string{"latest", "all", "2023", "1999"} {
		cfg := validConfig()
		cfg.Archive.Year = year
		require.NoError(t, cfg.Validate(), "year %q should be accepted", year)
	}
	for _, year := range []string{"", "23", "20233", "next", "20a3"} {
		cfg := validConfig()
		cfg.Archive.Year = year
		require.Error(t, cfg.Validate(), "year %q should be rejected", year)
	}
}

func TestValidateGradingScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.GradingScheme = "newest"
	require.Error(t, cfg.Validate())
}

func TestValidateGCSRequiresBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Provider = "gcs"
	require.Error(t, cfg.Validate())

	cfg.Storage.GCS.BucketName = "my-bucket"
	require.NoError(t, cfg.Validate())
}

func TestParseSessionToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"raw token", "abc123", "abc123"},
		{"raw token with trailing attributes", "abc123; Path=/; Secure", "abc123"},
		{"cookie fragment", "__Host-ans_session=abc123; other=x", "abc123"},
		{"cookie fragment without terminator", "__Host-ans_session=abc123", "abc123"},
		{"cookie fragment mid-header", "foo=1; __Host-ans_session=abc123; bar=2", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseSessionToken(tt.token))
		})
	}
}
