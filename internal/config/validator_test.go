package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnv(t *testing.T) {
	t.Setenv("GALLERY_A", "x")
	t.Setenv("GALLERY_B", "  ")

	require.NoError(t, ValidateEnv([]string{"GALLERY_A"}))

	err := ValidateEnv([]string{"GALLERY_A", "GALLERY_B", "GALLERY_C"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GALLERY_B, GALLERY_C")
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("GALLERY_INT", "42")
	t.Setenv("GALLERY_BAD_INT", "forty")
	t.Setenv("GALLERY_DUR", "45s")
	t.Setenv("GALLERY_BOOL", "true")

	assert.Equal(t, 42, GetEnvInt("GALLERY_INT", 1))
	assert.Equal(t, 1, GetEnvInt("GALLERY_BAD_INT", 1))
	assert.Equal(t, 45*time.Second, GetEnvDuration("GALLERY_DUR", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("GALLERY_MISSING", time.Second))
	assert.True(t, GetEnvBool("GALLERY_BOOL", false))
	assert.Equal(t, "dflt", GetEnvOrDefault("GALLERY_MISSING", "dflt"))
}

func TestMustGetEnvPanics(t *testing.T) {
	assert.Panics(t, func() { MustGetEnv("GALLERY_DEFINITELY_UNSET") })
}
