package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/redis"
)

const lockScope = "admission"

type dbClient interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	Dialect() string
}

type Params struct {
	DB       dbClient
	Projects projects.Repository
	Locker   redis.Locker
	Config   config.AdmissionConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

// Controller decides whether an account may open a new project.
type Controller struct {
	db       dbClient
	projects projects.Repository
	locker   redis.Locker
	cfg      config.AdmissionConfig
	logg     *logger.Logger
	now      func() time.Time
}

// Admission is the project handed back to the caller and whether it was an
// existing draft.
type Admission struct {
	Project *models.Project
	Reused  bool
}

func NewController(p Params) (*Controller, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Projects == nil {
		return nil, fmt.Errorf("project repository required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		db:       p.DB,
		projects: p.Projects,
		locker:   p.Locker,
		cfg:      p.Config,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// Admit returns a draft created by the account inside the reuse window, or
// creates one when the account is under its project limit. Admissions for one
// account are serialized by a redis lock and a row lock on the account.
func (c *Controller) Admit(ctx context.Context, accountID uuid.UUID) (*Admission, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	ctx = c.logg.WithAccountID(ctx, accountID.String())

	release, err := c.lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *Admission
	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := c.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		repo := c.projects.WithTx(tx)

		if c.cfg.DraftReuseWindow > 0 {
			draft, err := repo.FindRecentDraft(ctx, accountID, c.now().Add(-c.cfg.DraftReuseWindow))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up recent draft")
			}
			if draft != nil {
				result = &Admission{Project: draft, Reused: true}
				return nil
			}
		}

		count, err := repo.CountByAccount(ctx, accountID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count projects")
		}
		if count >= int64(account.ProjectLimit) {
			return pkgerrors.New(pkgerrors.CodeProjectLimit, "project limit reached").WithDetails(map[string]any{
				"limit":    account.ProjectLimit,
				"projects": count,
			})
		}

		project := &models.Project{AccountID: accountID, Status: enums.ProjectStatusDraft}
		if err := repo.Create(ctx, project); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create project")
		}
		result = &Admission{Project: project}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Reused {
		c.logg.Info(c.logg.WithProjectID(ctx, result.Project.ID.String()), "reused recent draft")
	} else {
		c.logg.Info(c.logg.WithProjectID(ctx, result.Project.ID.String()), "project admitted")
	}
	return result, nil
}

// lockAccount loads the account row FOR UPDATE. sqlite has no row locks and
// serializes writers already.
func (c *Controller) lockAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) (*models.Account, error) {
	query := tx.WithContext(ctx)
	if c.db.Dialect() != db.DriverSQLite {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.Account
	if err := query.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock account")
	}
	return &account, nil
}

func (c *Controller) lock(ctx context.Context, accountID uuid.UUID) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	key := c.locker.LockKey(lockScope, accountID.String())
	token, err := redis.AcquireLock(ctx, c.locker, key, c.cfg.LockTTL, c.cfg.LockWait)
	if err != nil {
		if errors.Is(err, redis.ErrLockBusy) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another project is being created for this account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire admission lock")
	}
	return func() {
		if err := c.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "release admission lock failed")
		}
	}, nil
}
