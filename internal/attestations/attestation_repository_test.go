package attestations

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/khanghh/kattest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// openTestDB connects to the MySQL database named by DB_URL.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		t.Skip("DB_URL is not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   "it_",
			SingularTable: true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return db
}

func TestRepository_ConditionalTransitions(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	req := &model.Request{
		Numero:          fmt.Sprintf("DEM-IT-%d", suffix),
		BeneficiaryName: "Jean Dupont",
		ServiceName:     "Service informatique",
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:          model.RequestStatusValidated,
		AgentID:         7,
	}
	require.NoError(t, db.Create(req).Error)

	ok, err := repo.UpdateRequestStatus(ctx, req.ID, model.RequestStatusValidated, model.RequestStatusAttestationGenerated)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.UpdateRequestStatus(ctx, req.ID, model.RequestStatusValidated, model.RequestStatusAttestationGenerated)
	require.NoError(t, err)
	assert.False(t, ok, "second transition from validated must not match")

	att := &model.Attestation{
		RequestID:     req.ID,
		Numero:        fmt.Sprintf("ATT-IT-%d", suffix),
		Status:        model.AttestationStatusPendingSignature,
		GeneratedByID: 7,
		GeneratedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.CreateAttestation(ctx, att))

	dup := *att
	dup.ID = 0
	dup.Request = nil
	assert.True(t, isDuplicateKey(repo.CreateAttestation(ctx, &dup)))

	code := fmt.Sprintf("IT%010d", suffix%10000000000)
	ok, err = repo.MarkSigned(ctx, att.ID, 42, time.Now().UTC(), code)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkSigned(ctx, att.ID, 43, time.Now().UTC(), code+"X")
	require.NoError(t, err)
	assert.False(t, ok, "signed attestation must not be signed twice")

	got, err := repo.GetByVerificationCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, att.ID, got.ID)
	require.NotNil(t, got.SignerID)
	assert.Equal(t, uint(42), *got.SignerID)
	require.NotNil(t, got.Request)
	assert.Equal(t, "Jean Dupont", got.Request.BeneficiaryName)

	require.NoError(t, repo.DeleteAttestation(ctx, att.ID))
	assert.ErrorIs(t, repo.DeleteAttestation(ctx, att.ID), ErrAttestationNotFound)
}
