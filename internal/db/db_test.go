package db

import (
	"context"
	"testing"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDBConfig() *config.Config {
	return &config.Config{
		Environment:  "test",
		DBHost:       "db.internal",
		DBPort:       "6543",
		DBUsername:   "replyprep",
		DBPassword:   "p@ss:word",
		DBName:       "replyprep",
		DBSSLMode:    "disable",
		MailboxOwner: "me@example.com",
		ExportPath:   "replyprep.sqlite",
	}
}

func TestNewPoolConfig(t *testing.T) {
	tests := []struct {
		name         string
		maxConns     int
		wantMaxConns int32
	}{
		{name: "default pool size", maxConns: 0, wantMaxConns: defaultMaxConns},
		{name: "configured pool size", maxConns: 2, wantMaxConns: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDBConfig()
			cfg.DBMaxConns = tt.maxConns

			poolConfig, err := NewPoolConfig(cfg)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMaxConns, poolConfig.MaxConns)
			assert.Equal(t, int32(0), poolConfig.MinConns)
			assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
			assert.Equal(t, uint16(6543), poolConfig.ConnConfig.Port)
			assert.Equal(t, "p@ss:word", poolConfig.ConnConfig.Password)
			assert.Equal(t, applicationName, poolConfig.ConnConfig.RuntimeParams["application_name"])
		})
	}
}

func TestNewPoolConfigRejectsBadURL(t *testing.T) {
	cfg := testDBConfig()
	cfg.DBSSLMode = "sometimes"

	_, err := NewPoolConfig(cfg)
	assert.ErrorContains(t, err, "failed to parse database URL")
}

func TestNewConnectionInvalidConfig(t *testing.T) {
	cfg := testDBConfig()
	cfg.DBHost = "invalid-host-that-does-not-exist"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewConnection(ctx, cfg)
	assert.Error(t, err)
}

func TestCloseConnection(t *testing.T) {
	CloseConnection(nil)
}
