package logger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/warp/ledger-engine/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, logger.ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel("loud"))
}

func TestNew_AppliesLevel(t *testing.T) {
	log := logger.New("error", false)

	assert.Equal(t, zerolog.ErrorLevel, log.GetLevel())
}

func TestNewWithWriter_WritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf)

	log.Info().Str("account_id", "acc-1").Msg("balance adjusted")

	assert.Contains(t, buf.String(), `"account_id":"acc-1"`)
	assert.Contains(t, buf.String(), `"message":"balance adjusted"`)
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	log := logger.FromContext(ctx)
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
}

func TestFromContext_DefaultIsDisabled(t *testing.T) {
	log := logger.FromContext(context.Background())

	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}
