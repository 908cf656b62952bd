package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/acmg-amp-rating/internal/database"
	"github.com/acmg-amp-rating/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    5,
		MinConns:    1,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	runner, err := database.NewMigrationRunner(config.URL(), "", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	return db
}

func TestVerdictHistoryRepository(t *testing.T) {
	db := setupTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewVerdictHistoryRepository(db.Pool, logger)
	ctx := context.Background()

	const variant = "grch37-17-41245466-G-A"
	first := &domain.VerdictRecord{
		Variant:        variant,
		Classification: domain.LIKELY_PATHOGENIC,
		Rule:           domain.RuleLikelyPathogenicVeryStrongModerate,
		Contributing:   []domain.CriterionCode{domain.PVS1, domain.PM2},
		CreatedAt:      time.Now().UTC().Add(-time.Minute),
	}
	second := &domain.VerdictRecord{
		Variant:        variant,
		Classification: domain.PATHOGENIC,
		Rule:           domain.RulePathogenicVeryStrongStrong,
		Contributing:   []domain.CriterionCode{domain.PVS1, domain.PS3},
		Comment:        "functional study added",
	}

	require.NoError(t, repo.RecordVerdict(ctx, first))
	require.NoError(t, repo.RecordVerdict(ctx, second))
	assert.NotEmpty(t, second.ID)
	assert.False(t, second.CreatedAt.IsZero())

	got, err := repo.ListVerdicts(ctx, variant, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, domain.PATHOGENIC, got[0].Classification)
	assert.Equal(t, []domain.CriterionCode{domain.PVS1, domain.PS3}, got[0].Contributing)
	assert.Equal(t, "functional study added", got[0].Comment)

	limited, err := repo.ListVerdicts(ctx, variant, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListVerdicts(ctx, "grch38-1-100-A-T", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := repo.DeleteVerdicts(ctx, variant)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
