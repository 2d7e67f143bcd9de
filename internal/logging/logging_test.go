package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesValidLevel(t *testing.T) {
	logger := New(os.Stderr, "debug")
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNewFallsBackToInfoOnInvalidLevel(t *testing.T) {
	logger := New(os.Stderr, "not-a-level")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
