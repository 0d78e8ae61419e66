package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	// Given only the required variables
	es := env.EnvSet{
		"BADGER_FILEPATH": "/tmp/badger",
		"BLUGE_FILEPATH":  "/tmp/bluge",
		"JWT_SECRET":      "secret",
	}

	// When the environment is unmarshalled
	var config Config
	err := env.Unmarshal(es, &config)

	// Then every optional key has its default
	req.NoError(err)
	req.Equal(8000, config.Port)
	req.Equal(50051, config.GrpcPort)
	req.Equal(30*time.Minute, config.AuthTokenDuration)
	req.Equal(50, config.HistoryLimit)
	req.Equal(100, config.MaxPageSize)
	req.Equal(54*time.Second, config.PingInterval)
	req.Equal(60*time.Second, config.PongWait)
	req.Equal(int64(8192), config.MaxFrameSize)
	req.Equal("*", config.CharReplacement)
	req.False(config.AdminSeed())
	req.Empty(config.Origins())
	req.NoError(config.Validate())
}

func TestConfig_MissingSecret(t *testing.T) {
	req := require.New(t)

	// Given no JWT secret
	es := env.EnvSet{
		"BADGER_FILEPATH": "/tmp/badger",
		"BLUGE_FILEPATH":  "/tmp/bluge",
	}

	// When the environment is unmarshalled
	var config Config
	err := env.Unmarshal(es, &config)

	// Then it fails
	req.Error(err)
}

func TestConfig_Origins(t *testing.T) {
	req := require.New(t)

	config := Config{AllowedOrigins: " https://a.example ,,https://b.example"}

	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestConfig_Validate(t *testing.T) {
	base := Config{
		HistoryLimit:    50,
		MaxPageSize:     100,
		SendTimeout:     time.Second,
		PingInterval:    time.Second,
		PongWait:        2 * time.Second,
		MetricInterval:  time.Second,
		GcInterval:      time.Minute,
		RestartInterval: time.Millisecond,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "zero history", mutate: func(c *Config) { c.HistoryLimit = 0 }},
		{name: "zero page size", mutate: func(c *Config) { c.MaxPageSize = 0 }},
		{name: "ping after pong wait", mutate: func(c *Config) { c.PingInterval = 3 * time.Second }},
		{name: "zero send timeout", mutate: func(c *Config) { c.SendTimeout = 0 }},
		{name: "zero ping interval", mutate: func(c *Config) { c.PingInterval = 0 }},
		{name: "negative ping interval", mutate: func(c *Config) { c.PingInterval = -time.Second }},
		{name: "zero pong wait", mutate: func(c *Config) { c.PongWait = 0 }},
		{name: "zero metric interval", mutate: func(c *Config) { c.MetricInterval = 0 }},
		{name: "zero gc interval", mutate: func(c *Config) { c.GcInterval = 0 }},
		{name: "zero restart interval", mutate: func(c *Config) { c.RestartInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base
			tt.mutate(&config)
			if tt.ok {
				require.NoError(t, config.Validate())
			} else {
				require.Error(t, config.Validate())
			}
		})
	}
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("ab")
	req.Error(err)
}
