package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Run("When environment variable exists", func(t *testing.T) {
		t.Setenv("TEST_STRING_ENV", "value")
		assert.Equal(t, "value", GetEnv("TEST_STRING_ENV", "default"))
	})

	t.Run("When environment variable does not exist", func(t *testing.T) {
		assert.Equal(t, "default", GetEnv("NON_EXISTENT_STRING_ENV", "default"))
	})
}

func TestGetEnvAsInt(t *testing.T) {
	t.Run("When environment variable exists", func(t *testing.T) {
		t.Setenv("TEST_INT_ENV", "42")
		value, err := GetEnvAsInt("TEST_INT_ENV", 0)
		assert.Equal(t, 42, value)
		assert.NoError(t, err)
	})

	t.Run("When environment variable does not exist", func(t *testing.T) {
		value, err := GetEnvAsInt("NON_EXISTENT_INT_ENV", 100)
		assert.Equal(t, 100, value)
		assert.NoError(t, err)
	})

	t.Run("When environment variable is invalid", func(t *testing.T) {
		t.Setenv("INVALID_INT_ENV", "not_an_int")
		value, err := GetEnvAsInt("INVALID_INT_ENV", 0)
		assert.Equal(t, 0, value)
		assert.Error(t, err)
	})
}

func TestGetEnvAsBool(t *testing.T) {
	t.Run("should return true when environment variable is set to 'true'", func(t *testing.T) {
		t.Setenv("TEST_BOOL_ENV", "true")
		assert.True(t, GetEnvAsBool("TEST_BOOL_ENV", false))
	})

	t.Run("should return false when environment variable is set to 'false'", func(t *testing.T) {
		t.Setenv("TEST_BOOL_ENV", "false")
		assert.False(t, GetEnvAsBool("TEST_BOOL_ENV", true))
	})

	t.Run("should return default when environment variable is invalid", func(t *testing.T) {
		t.Setenv("TEST_BOOL_ENV", "not_a_bool")
		assert.True(t, GetEnvAsBool("TEST_BOOL_ENV", true))
	})
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Run("When environment variable exists", func(t *testing.T) {
		t.Setenv("TEST_DURATION_ENV", "90s")
		value, err := GetEnvAsDuration("TEST_DURATION_ENV", time.Minute)
		assert.Equal(t, 90*time.Second, value)
		assert.NoError(t, err)
	})

	t.Run("When environment variable does not exist", func(t *testing.T) {
		value, err := GetEnvAsDuration("NON_EXISTENT_DURATION_ENV", time.Hour)
		assert.Equal(t, time.Hour, value)
		assert.NoError(t, err)
	})

	t.Run("When environment variable is invalid", func(t *testing.T) {
		t.Setenv("TEST_DURATION_ENV", "ninety seconds")
		value, err := GetEnvAsDuration("TEST_DURATION_ENV", time.Minute)
		assert.Equal(t, time.Minute, value)
		assert.Error(t, err)
	})
}

func TestParseBrokersEnv(t *testing.T) {
	t.Run("should parse comma-separated brokers", func(t *testing.T) {
		result := ParseBrokersEnv("broker1:9092, broker2:9092, broker3:9092")
		assert.Equal(t, []string{"broker1:9092", "broker2:9092", "broker3:9092"}, result)
	})

	t.Run("should parse single broker", func(t *testing.T) {
		result := ParseBrokersEnv("localhost:9092")
		assert.Equal(t, []string{"localhost:9092"}, result)
	})

	t.Run("should return empty slice for empty string", func(t *testing.T) {
		result := ParseBrokersEnv("")
		assert.Equal(t, []string{}, result)
	})
}
