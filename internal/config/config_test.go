package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
)

func setMemoryEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORAGE_BACKEND", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setMemoryEnv(t)

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 7*24*60, cfg.AccessTTLMin)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.True(t, cfg.ServiceChargeRate.Equal(decimal.RequireFromString("0.15")))
	assert.False(t, cfg.AutoConfirmBookings)
	assert.Equal(t, model.DepartmentWorkflow.Name(), cfg.OrderWorkflow.Name())

	role, err := cfg.Roles.Resolve("crew")
	require.NoError(t, err)
	assert.Equal(t, authz.Manager, role)
}

func TestLoadOverrides(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("TAX_RATE", "0.1")
	t.Setenv("AUTO_CONFIRM_BOOKINGS", "yes")
	t.Setenv("ORDER_WORKFLOW", "room_service")
	t.Setenv("ROLE_ALIASES", "crew=admin")

	cfg, err := load()
	require.NoError(t, err)
	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.AutoConfirmBookings)
	assert.Equal(t, "room_service", cfg.OrderWorkflow.Name())
	role, err := cfg.Roles.Resolve("crew")
	require.NoError(t, err)
	assert.Equal(t, authz.Admin, role)
	_, err = cfg.Roles.Resolve("staff")
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"negative tax":     {"TAX_RATE", "-0.1"},
		"tax above one":    {"TAX_RATE", "1.5"},
		"garbage service":  {"SERVICE_CHARGE_RATE", "lots"},
		"unknown workflow": {"ORDER_WORKFLOW", "galley"},
		"bad alias":        {"ROLE_ALIASES", "crew=captain"},
		"bad backend":      {"STORAGE_BACKEND", "mongo"},
		"bcrypt too low":   {"BCRYPT_COST", "2"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			setMemoryEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "app", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "cruise"}
	assert.Equal(t, "app:pw@tcp(db:3306)/cruise?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true", cfg.DSN())
	cfg.DBPass = ""
	assert.Contains(t, cfg.DSN(), "app@tcp(db:3306)")
}

func TestLoadRateLimitConfig(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 5, cfg.LoginLimit)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)

	t.Setenv("LOGIN_RATE_LIMIT", "0")
	t.Setenv("RATE_LIMIT_WINDOW", "nonsense")
	cfg = LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.LoginLimit)
	assert.Equal(t, time.Minute, cfg.Window)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.Equal(t, "catalog", cfg.Prefix)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}
