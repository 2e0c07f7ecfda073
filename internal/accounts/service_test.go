package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
)

func newAccountsService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:accounts_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.EnsureSQLiteSchema(context.Background(), conn))

	credits, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(conn),
		DB:         db.FromConn(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	svc, err := NewService(NewRepository(conn), credits, config.CreditsConfig{StartingBalance: 1000, DefaultProjectLimit: 3}, nil)
	require.NoError(t, err)
	return svc, conn
}

func TestGetOrCreateProvisionsOnce(t *testing.T) {
	svc, _ := newAccountsService(t)
	ctx := context.Background()
	accountID := uuid.New()

	first, err := svc.GetOrCreate(ctx, accountID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, first.CreditBalance)
	assert.Equal(t, 3, first.ProjectLimit)

	second, err := svc.GetOrCreate(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreditBalance, second.CreditBalance)
}

func TestSetProjectLimit(t *testing.T) {
	svc, _ := newAccountsService(t)
	ctx := context.Background()
	accountID := uuid.New()
	_, err := svc.GetOrCreate(ctx, accountID)
	require.NoError(t, err)

	updated, err := svc.SetProjectLimit(ctx, accountID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.ProjectLimit)

	_, err = svc.SetProjectLimit(ctx, uuid.New(), 10)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.SetProjectLimit(ctx, accountID, -1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGrantCredits(t *testing.T) {
	svc, _ := newAccountsService(t)
	ctx := context.Background()
	accountID := uuid.New()
	_, err := svc.GetOrCreate(ctx, accountID)
	require.NoError(t, err)

	updated, err := svc.GrantCredits(ctx, accountID, 250)
	require.NoError(t, err)
	assert.EqualValues(t, 1250, updated.CreditBalance)

	_, err = svc.GrantCredits(ctx, uuid.New(), 250)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
