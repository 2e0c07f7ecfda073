package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
	"github.com/angelmondragon/draftforge-backend/pkg/retry"
)

func openDocumentsDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:documents_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.EnsureSQLiteSchema(context.Background(), conn))
	return conn
}

func newStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	store, err := NewStore(repo, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
	require.NoError(t, err)
	return store
}

func TestCreatePlaceholderIsPendingAndUnique(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	ctx := context.Background()
	projectID := uuid.New()

	doc, err := store.CreatePlaceholder(ctx, projectID, enums.DocumentTypePRD, "")
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusPending, doc.Status)
	assert.Equal(t, "Product Requirements Document", doc.Title)
	assert.Empty(t, doc.Content)

	again, err := store.CreatePlaceholder(ctx, projectID, enums.DocumentTypePRD, "PRD")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)

	rows, err := store.ListByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCreatePlaceholderRejectsUnknownType(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	_, err := store.CreatePlaceholder(context.Background(), uuid.New(), enums.DocumentType("roadmap"), "")
	require.Error(t, err)
}

func TestSetStatusLifecycle(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	ctx := context.Background()
	doc, err := store.CreatePlaceholder(ctx, uuid.New(), enums.DocumentTypeSchema, "")
	require.NoError(t, err)

	content := "# Schema"
	_, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusCompleted, Content: &content})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	doc, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusGenerating})
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusGenerating, doc.Status)

	doc, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusCompleted, Content: &content})
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, content, doc.Content)

	_, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusPending})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusError})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// regeneration re-enters through generating
	doc, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusGenerating})
	require.NoError(t, err)
	msg := "provider timeout"
	doc, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusError, ErrorMessage: &msg})
	require.NoError(t, err)
	require.NotNil(t, doc.ErrorMessage)
	assert.Equal(t, msg, *doc.ErrorMessage)

	doc, err = store.SetStatus(ctx, doc.ID, StatusUpdate{Status: enums.DocumentStatusGenerating})
	require.NoError(t, err)
	assert.Nil(t, doc.ErrorMessage)
}

func TestSetStatusRequiresContentOnCompletion(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	_, err := store.SetStatus(context.Background(), uuid.New(), StatusUpdate{Status: enums.DocumentStatusCompleted})
	require.Error(t, err)
}

func TestSetStatusMissingDocument(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	_, err := store.SetStatus(context.Background(), uuid.New(), StatusUpdate{Status: enums.DocumentStatusGenerating})
	assert.ErrorIs(t, err, ErrNotFound)
}

type flakyRepository struct {
	Repository
	failures int
	calls    int
}

func (f *flakyRepository) Create(ctx context.Context, doc *models.Document) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("database is locked")
	}
	return f.Repository.Create(ctx, doc)
}

func TestWritesAreRetriedWithinBudget(t *testing.T) {
	conn := openDocumentsDB(t)
	ctx := context.Background()

	recovering := &flakyRepository{Repository: NewRepository(conn), failures: 2}
	doc, err := newStore(t, recovering).CreatePlaceholder(ctx, uuid.New(), enums.DocumentTypeAPISpec, "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, 3, recovering.calls)

	exhausted := &flakyRepository{Repository: NewRepository(conn), failures: 5}
	_, err = newStore(t, exhausted).CreatePlaceholder(ctx, uuid.New(), enums.DocumentTypeAPISpec, "")
	require.Error(t, err)
	assert.Equal(t, 3, exhausted.calls)
}

func TestDeleteByProjectAndType(t *testing.T) {
	store := newStore(t, NewRepository(openDocumentsDB(t)))
	ctx := context.Background()
	projectID := uuid.New()
	_, err := store.CreatePlaceholder(ctx, projectID, enums.DocumentTypePRD, "")
	require.NoError(t, err)
	flow, err := store.CreatePlaceholder(ctx, projectID, enums.DocumentTypeUserFlow, "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteByProjectAndType(ctx, projectID, enums.DocumentTypePRD))
	rows, err := store.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, flow.ID, rows[0].ID)

	assert.ErrorIs(t, store.Delete(ctx, flow.ID), ErrInFlight)

	_, err = store.SetStatus(ctx, flow.ID, StatusUpdate{Status: enums.DocumentStatusGenerating})
	require.NoError(t, err)
	assert.ErrorIs(t, store.Delete(ctx, flow.ID), ErrInFlight)

	msg := "provider unavailable"
	_, err = store.SetStatus(ctx, flow.ID, StatusUpdate{Status: enums.DocumentStatusError, ErrorMessage: &msg})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, flow.ID))
	assert.ErrorIs(t, store.Delete(ctx, flow.ID), ErrNotFound)
}

func TestListStuck(t *testing.T) {
	conn := openDocumentsDB(t)
	store := newStore(t, NewRepository(conn))
	ctx := context.Background()
	projectID := uuid.New()

	stale, err := store.CreatePlaceholder(ctx, projectID, enums.DocumentTypePRD, "")
	require.NoError(t, err)
	_, err = store.CreatePlaceholder(ctx, projectID, enums.DocumentTypeSchema, "")
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.Document{}).
		Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	rows, err := store.ListStuck(ctx, time.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\nSome *text*.\n\n<script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Title</h1>")
	assert.Contains(t, html, "<em>text</em>")
	assert.NotContains(t, html, "<script>")
}
