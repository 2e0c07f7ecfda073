package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/internal/llm"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
)

type scriptedClient struct {
	text    string
	err     error
	prompts []llm.Prompt
}

func (c *scriptedClient) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.text, c.err
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	client  *scriptedClient
	account uuid.UUID
	project *models.Project
}

var testCredits = config.CreditsConfig{
	PlanGenerationCost: 100,
	IdeaRefinementCost: 25,
	AIAnswerCost:       10,
}

func newFixture(t *testing.T, balance int64, client *scriptedClient) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:assist_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.EnsureSQLiteSchema(context.Background(), conn))

	account := &models.Account{CreditBalance: balance, ProjectLimit: 3}
	require.NoError(t, conn.Create(account).Error)

	repo := projects.NewRepository(conn)
	project := &models.Project{
		AccountID: account.ID,
		Idea:      "an app that splits rent between roommates",
		Details:   map[string]string{"audience": "students"},
		Tools:     []string{"Go"},
		Status:    enums.ProjectStatusDraft,
	}
	require.NoError(t, repo.Create(context.Background(), project))

	credits, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(conn),
		DB:         db.FromConn(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Projects: repo,
		Ledger:   credits,
		Client:   client,
		Credits:  testCredits,
	})
	require.NoError(t, err)

	return &fixture{conn: conn, svc: svc, client: client, account: account.ID, project: project}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	var account models.Account
	require.NoError(t, f.conn.First(&account, "id = ?", f.account).Error)
	return account.CreditBalance
}

func (f *fixture) usage(t *testing.T) []models.CreditUsage {
	t.Helper()
	var rows []models.CreditUsage
	require.NoError(t, f.conn.Where("account_id = ?", f.account).Find(&rows).Error)
	return rows
}

func TestRefineIdeaChargesAndStores(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{text: "  A rent splitter for student flats.  "})

	got, err := f.svc.RefineIdea(context.Background(), f.account, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "A rent splitter for student flats.", got.Idea)
	assert.EqualValues(t, 975, f.balance(t))

	rows := f.usage(t)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.CreditActionIdeaRefinement, rows[0].Action)
	assert.EqualValues(t, 25, rows[0].Credits)

	require.Len(t, f.client.prompts, 1)
	assert.Contains(t, f.client.prompts[0].User, "splits rent between roommates")
	assert.Contains(t, f.client.prompts[0].User, "- audience: students")
}

func TestGeneratePlanStoresPlan(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{text: "## Phase 1\n- ship it"})

	got, err := f.svc.GeneratePlan(context.Background(), f.account, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, "## Phase 1\n- ship it", got.Plan)
	assert.EqualValues(t, 900, f.balance(t))
}

func TestAnswerReturnsTextWithoutTouchingProject(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{text: "Start with the web app."})

	got, err := f.svc.Answer(context.Background(), f.account, f.project.ID, " Web or mobile first? ")
	require.NoError(t, err)
	assert.Equal(t, "Start with the web app.", got.Answer)
	assert.Equal(t, "Web or mobile first?", got.Question)
	assert.EqualValues(t, 990, f.balance(t))
	assert.True(t, strings.HasSuffix(f.client.prompts[0].User, "Question: Web or mobile first?"))
}

func TestAssistRejectsWhenCreditsShort(t *testing.T) {
	f := newFixture(t, 20, &scriptedClient{text: "unused"})

	_, err := f.svc.RefineIdea(context.Background(), f.account, f.project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientCredits))
	assert.Empty(t, f.client.prompts)
	assert.EqualValues(t, 20, f.balance(t))
	assert.Empty(t, f.usage(t))
}

func TestAssistKeepsChargeWhenCompletionFails(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{err: errors.New("upstream overloaded")})

	_, err := f.svc.GeneratePlan(context.Background(), f.account, f.project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGenerationFailed))
	assert.EqualValues(t, 900, f.balance(t))
	assert.Len(t, f.usage(t), 1)
}

func TestAssistTreatsBlankCompletionAsFailure(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{text: "   "})

	_, err := f.svc.RefineIdea(context.Background(), f.account, f.project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGenerationFailed))
	assert.True(t, errors.Is(err, llm.ErrEmptyCompletion))
}

func TestAssistValidation(t *testing.T) {
	f := newFixture(t, 1000, &scriptedClient{text: "ok"})

	_, err := f.svc.Answer(context.Background(), f.account, f.project.ID, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Answer(context.Background(), f.account, f.project.ID, strings.Repeat("a", maxQuestionLength+1))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.RefineIdea(context.Background(), uuid.New(), f.project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, f.conn.Model(&models.Project{}).Where("id = ?", f.project.ID).Update("status", enums.ProjectStatusGeneratingDocs).Error)
	_, err = f.svc.GeneratePlan(context.Background(), f.account, f.project.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.Empty(t, f.client.prompts)
	assert.EqualValues(t, 1000, f.balance(t))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
