package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/draftforge-backend/pkg/errors"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/draftforge-backend/pkg/redis"
)

const lockScope = "generation"

type documentStore interface {
	CreatePlaceholder(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType, title string) (*models.Document, error)
	SetStatus(ctx context.Context, id uuid.UUID, update documents.StatusUpdate) (*models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type creditLedger interface {
	Reserve(ctx context.Context, accountID uuid.UUID, amount int64) error
	Record(ctx context.Context, input ledger.RecordUsageInput) (*models.CreditUsage, error)
	Refund(ctx context.Context, input ledger.RefundInput) error
}

type documentLister interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Params struct {
	Projects   projects.Repository
	Documents  documentStore
	Ledger     creditLedger
	Generator  Generator
	DB         txRunner
	Outbox     outbox.Emitter
	Locker     redis.Locker
	Generation config.GenerationConfig
	Credits    config.CreditsConfig
	Logger     *logger.Logger
	Metrics    *metrics.GenerationMetrics
}

// Orchestrator runs document submissions: reserve credits, create
// placeholders, generate each document, and settle the project.
type Orchestrator struct {
	projects  projects.Repository
	documents documentStore
	ledger    creditLedger
	generator Generator
	db        txRunner
	outbox    outbox.Emitter
	locker    redis.Locker
	cfg       config.GenerationConfig
	cost      int64
	logg      *logger.Logger
	metrics   *metrics.GenerationMetrics
	inflight  sync.WaitGroup
}

func NewOrchestrator(p Params) (*Orchestrator, error) {
	switch {
	case p.Projects == nil:
		return nil, fmt.Errorf("project repository required")
	case p.Documents == nil:
		return nil, fmt.Errorf("document store required")
	case p.Ledger == nil:
		return nil, fmt.Errorf("credit ledger required")
	case p.Generator == nil:
		return nil, fmt.Errorf("generator required")
	case p.DB == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Locker == nil:
		// classification and the reserve both depend on the per-project lock
		return nil, fmt.Errorf("submission locker required")
	case p.Credits.PerDocumentCost <= 0:
		return nil, fmt.Errorf("per document cost must be positive")
	}
	if p.Generation.MaxConcurrency <= 0 {
		p.Generation.MaxConcurrency = 1
	}
	return &Orchestrator{
		projects:  p.Projects,
		documents: p.Documents,
		ledger:    p.Ledger,
		generator: p.Generator,
		db:        p.DB,
		outbox:    p.Outbox,
		locker:    p.Locker,
		cfg:       p.Generation,
		cost:      p.Credits.PerDocumentCost,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}, nil
}

type workKind int

const (
	kindNew workKind = iota
	kindRegenerate
	kindResume
)

type workItem struct {
	docType enums.DocumentType
	kind    workKind
	doc     *models.Document
	created bool
	status  enums.DocumentStatus
	errMsg  string
}

func (w *workItem) charged() bool { return w.kind != kindResume }

// ready reports whether the item has a record to generate into.
func (w *workItem) ready() bool { return w.created }

type submission struct {
	accountID uuid.UUID
	project   *models.Project
	types     []enums.DocumentType
	action    enums.CreditAction
	pctx      projects.GenerationContext
	items     []*workItem
	charged   int64
}

// Submit generates documentTypes for a project owned by the caller.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) SubmissionResult {
	types, err := parseTypes(input.DocumentTypes)
	if err != nil {
		return o.reject(ctx, "rejected", err)
	}
	project, err := projects.LoadOwned(ctx, o.projects, input.AccountID, input.ProjectID)
	if err != nil {
		return o.reject(ctx, "rejected", err)
	}
	return o.run(ctx, &submission{
		accountID: input.AccountID,
		project:   project,
		types:     types,
		action:    enums.CreditActionDocumentGeneration,
	})
}

// Regenerate reruns a single document in place at the cost of one document.
func (o *Orchestrator) Regenerate(ctx context.Context, accountID, documentID uuid.UUID) SubmissionResult {
	doc, err := o.documents.FindByID(ctx, documentID)
	if err != nil {
		return o.reject(ctx, "rejected", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load document"))
	}
	if doc == nil {
		return o.reject(ctx, "rejected", pkgerrors.New(pkgerrors.CodeNotFound, "document not found"))
	}
	project, err := projects.LoadOwned(ctx, o.projects, accountID, doc.ProjectID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return o.reject(ctx, "rejected", err)
	}
	return o.run(ctx, &submission{
		accountID: accountID,
		project:   project,
		types:     []enums.DocumentType{doc.Type},
		action:    enums.CreditActionDocumentRegeneration,
	})
}

// Wait blocks until background submissions started in async mode finish.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) run(ctx context.Context, sub *submission) SubmissionResult {
	ctx = o.logg.WithFields(ctx, map[string]any{
		"account_id": sub.accountID.String(),
		"project_id": sub.project.ID.String(),
	})
	sub.pctx = projects.ContextOf(sub.project)

	release, err := o.lock(ctx, sub.project.ID)
	if err != nil {
		return o.reject(ctx, "busy", err)
	}
	err = o.prepare(ctx, sub)
	release()
	if err != nil {
		result := o.reject(ctx, outcomeFor(err), err)
		if pkgerrors.IsCode(err, pkgerrors.CodeGenerationFailed) {
			result.Documents = outcomes(sub.items)
		}
		return result
	}

	if o.cfg.Async {
		result := o.accepted(sub)
		o.inflight.Add(1)
		go func() {
			defer o.inflight.Done()
			o.execute(context.WithoutCancel(ctx), sub)
		}()
		return result
	}
	o.execute(ctx, sub)
	return o.accepted(sub)
}

// prepare classifies, charges and creates the records for a submission. It
// runs under the per-project lock so two submissions cannot both charge for
// the same new type.
func (o *Orchestrator) prepare(ctx context.Context, sub *submission) error {
	existing, err := o.documents.ListByProject(ctx, sub.project.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list documents")
	}
	byType := make(map[enums.DocumentType]*models.Document, len(existing))
	for i := range existing {
		byType[existing[i].Type] = &existing[i]
	}

	chargedCount := 0
	for _, t := range sub.types {
		item := &workItem{docType: t, kind: kindNew, status: enums.DocumentStatusPending}
		if doc, ok := byType[t]; ok {
			item.doc = doc
			item.status = doc.Status
			if doc.Status.InFlight() {
				item.kind = kindResume
			} else {
				item.kind = kindRegenerate
			}
		}
		if item.charged() {
			chargedCount++
		}
		sub.items = append(sub.items, item)
	}

	cost := o.cost * int64(chargedCount)
	if cost > 0 {
		if err := o.ledger.Reserve(ctx, sub.accountID, cost); err != nil {
			return err
		}
	}

	created := 0
	for _, item := range sub.items {
		switch item.kind {
		case kindNew:
			handler, err := HandlerFor(item.docType)
			if err != nil {
				item.fail(err)
				continue
			}
			doc, err := o.documents.CreatePlaceholder(ctx, sub.project.ID, item.docType, handler.Title())
			if err != nil {
				o.logg.Error(o.logg.WithField(ctx, "document_type", string(item.docType)), "create placeholder failed", err)
				item.fail(err)
				continue
			}
			item.doc, item.status, item.created = doc, doc.Status, true
		case kindRegenerate:
			doc, err := o.documents.SetStatus(ctx, item.doc.ID, documents.StatusUpdate{Status: enums.DocumentStatusGenerating})
			if err != nil {
				o.logg.Error(o.logg.WithField(ctx, "document_id", item.doc.ID.String()), "reset document for regeneration failed", err)
				item.keep(o.currentStatus(ctx, item), err)
				continue
			}
			item.doc, item.status, item.created = doc, doc.Status, true
		case kindResume:
			item.created = true
		}
		if item.charged() && item.created {
			created++
		}
	}

	if cost > 0 && created == 0 {
		o.refund(ctx, sub.accountID, cost)
		cost = 0
	}
	if countReady(sub.items) == 0 {
		return pkgerrors.New(pkgerrors.CodeGenerationFailed, "no documents could be created")
	}

	if cost > 0 {
		sub.charged = cost
		usage := ledger.RecordUsageInput{
			AccountID: sub.accountID,
			ProjectID: &sub.project.ID,
			Action:    sub.action,
			Credits:   cost,
		}
		if len(sub.items) == 1 && sub.items[0].doc != nil {
			usage.DocumentID = &sub.items[0].doc.ID
		}
		if _, err := o.ledger.Record(ctx, usage); err != nil {
			o.logg.Error(o.logg.WithField(ctx, "credits", cost), "record credit usage failed", err)
		}
	}
	return nil
}

func (o *Orchestrator) refund(ctx context.Context, accountID uuid.UUID, amount int64) {
	err := o.ledger.Refund(ctx, ledger.RefundInput{
		AccountID: accountID,
		Credits:   amount,
		Reason:    "no documents could be created",
	})
	if err != nil {
		o.logg.Error(o.logg.WithField(ctx, "credits", amount), "refund failed", err)
	}
}

// execute generates every ready document and settles the project.
func (o *Orchestrator) execute(ctx context.Context, sub *submission) {
	o.markSubmitted(ctx, sub)

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxConcurrency)
	for _, item := range sub.items {
		if !item.ready() {
			continue
		}
		g.Go(func() error {
			o.generateOne(ctx, sub, item)
			return nil
		})
	}
	_ = g.Wait()

	o.finalize(ctx, sub.project.ID)
	o.metrics.IncSubmission("completed")
}

func (o *Orchestrator) generateOne(ctx context.Context, sub *submission, item *workItem) {
	docCtx := o.logg.WithFields(ctx, map[string]any{
		"document_id":   item.doc.ID.String(),
		"document_type": string(item.docType),
	})
	start := time.Now()

	if item.status != enums.DocumentStatusGenerating {
		doc, err := o.documents.SetStatus(ctx, item.doc.ID, documents.StatusUpdate{Status: enums.DocumentStatusGenerating})
		if err != nil {
			o.logg.Warn(o.logg.WithField(docCtx, "error", err.Error()), "could not start document generation")
			return
		}
		item.status = doc.Status
	}

	update := documents.StatusUpdate{Status: enums.DocumentStatusCompleted}
	content, genErr := o.generator.Generate(ctx, item.docType, sub.pctx)
	if genErr != nil {
		msg := genErr.Error()
		update = documents.StatusUpdate{Status: enums.DocumentStatusError, ErrorMessage: &msg}
		o.logg.Warn(o.logg.WithField(docCtx, "error", msg), "document generation failed")
	} else {
		update.Content = &content
	}

	doc, err := o.documents.SetStatus(ctx, item.doc.ID, update)
	if err != nil {
		// the record stays where it was; the stale sweeper picks it up
		o.logg.Error(docCtx, "persist document outcome failed", err)
		return
	}
	item.status = doc.Status
	if doc.ErrorMessage != nil {
		item.errMsg = *doc.ErrorMessage
	}
	o.metrics.ObserveDocument(string(item.docType), string(doc.Status), time.Since(start))
}

func (o *Orchestrator) markSubmitted(ctx context.Context, sub *submission) {
	types := make([]enums.DocumentType, 0, len(sub.items))
	for _, item := range sub.items {
		if item.ready() {
			types = append(types, item.docType)
		}
	}
	err := o.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := o.projects.WithTx(tx).UpdateStatus(ctx, sub.project.ID, enums.ProjectStatusGeneratingDocs); err != nil {
			return err
		}
		return o.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGenerationSubmitted,
			AggregateType: enums.AggregateProject,
			AggregateID:   sub.project.ID,
			Actor:         &outbox.ActorRef{AccountID: sub.accountID},
			Data: payloads.GenerationSubmittedEvent{
				ProjectID:     sub.project.ID,
				AccountID:     sub.accountID,
				DocumentTypes: types,
				Charged:       sub.charged,
			},
		})
	})
	if err != nil {
		o.logg.Error(ctx, "mark project generating failed", err)
	}
}

// finalize completes the project once none of its documents are in flight.
// A concurrent submission still running leaves it to that submission.
func (o *Orchestrator) finalize(ctx context.Context, projectID uuid.UUID) {
	if err := Finalize(ctx, o.db, o.projects, o.documents, o.outbox, projectID); err != nil {
		o.logg.Error(ctx, "finalize project failed", err)
	}
}

// Finalize marks a project completed and emits generation_completed when all
// of its documents are terminal. It is a no-op otherwise.
func Finalize(ctx context.Context, db txRunner, repo projects.Repository, docs documentLister, emitter outbox.Emitter, projectID uuid.UUID) error {
	rows, err := docs.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	completed, failed := 0, 0
	for _, doc := range rows {
		switch {
		case doc.Status.InFlight():
			return nil
		case doc.Status == enums.DocumentStatusCompleted:
			completed++
		default:
			failed++
		}
	}
	return db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).UpdateStatus(ctx, projectID, enums.ProjectStatusCompleted); err != nil {
			return err
		}
		return emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGenerationCompleted,
			AggregateType: enums.AggregateProject,
			AggregateID:   projectID,
			Data: payloads.GenerationCompletedEvent{
				ProjectID: projectID,
				Completed: completed,
				Failed:    failed,
			},
		})
	})
}

func (o *Orchestrator) lock(ctx context.Context, projectID uuid.UUID) (func(), error) {
	key := o.locker.LockKey(lockScope, projectID.String())
	token, err := redis.AcquireLock(ctx, o.locker, key, o.cfg.LockTTL, o.cfg.LockWait)
	if err != nil {
		if errors.Is(err, redis.ErrLockBusy) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another submission for this project is in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire generation lock")
	}
	return func() {
		if err := o.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "release generation lock failed")
		}
	}, nil
}

func (o *Orchestrator) reject(ctx context.Context, outcome string, err error) SubmissionResult {
	o.metrics.IncSubmission(outcome)
	result := failure(err)
	if result.Code == pkgerrors.CodeInternal || result.Code == pkgerrors.CodeDependency {
		o.logg.Error(ctx, "generation submission failed", err)
	}
	return result
}

func (o *Orchestrator) accepted(sub *submission) SubmissionResult {
	return SubmissionResult{
		Success:       true,
		DocumentCount: countReady(sub.items),
		Charged:       sub.charged,
		Documents:     outcomes(sub.items),
	}
}

// fail marks an item that never got a record.
func (w *workItem) fail(err error) {
	w.created = false
	w.errMsg = err.Error()
	w.status = enums.DocumentStatusError
}

// keep marks an item whose existing record could not be claimed; the result
// reports the record as stored.
func (w *workItem) keep(status enums.DocumentStatus, err error) {
	w.created = false
	w.errMsg = err.Error()
	w.status = status
}

// currentStatus re-reads the record behind item, falling back to the status
// seen at classification.
func (o *Orchestrator) currentStatus(ctx context.Context, item *workItem) enums.DocumentStatus {
	doc, err := o.documents.FindByID(ctx, item.doc.ID)
	if err != nil || doc == nil {
		return item.status
	}
	return doc.Status
}

func countReady(items []*workItem) int {
	n := 0
	for _, item := range items {
		if item.ready() {
			n++
		}
	}
	return n
}

func outcomes(items []*workItem) []DocumentOutcome {
	if len(items) == 0 {
		return nil
	}
	out := make([]DocumentOutcome, 0, len(items))
	for _, item := range items {
		outcome := DocumentOutcome{
			Type:    item.docType,
			Status:  item.status,
			Charged: item.charged(),
			Error:   item.errMsg,
		}
		if item.doc != nil {
			id := item.doc.ID
			outcome.ID = &id
		}
		out = append(out, outcome)
	}
	return out
}

func outcomeFor(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientCredits):
		return "insufficient_credits"
	case pkgerrors.IsCode(err, pkgerrors.CodeGenerationFailed):
		return "failed"
	default:
		return "error"
	}
}

// parseTypes rejects the whole request when any identifier is unknown and
// drops duplicates while keeping request order.
func parseTypes(raw []string) ([]enums.DocumentType, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one document type is required")
	}
	seen := make(map[enums.DocumentType]struct{}, len(raw))
	out := make([]enums.DocumentType, 0, len(raw))
	var unknown []string
	for _, value := range raw {
		t, err := enums.ParseDocumentType(value)
		if err != nil {
			unknown = append(unknown, value)
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(unknown) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown document types").
			WithDetails(map[string]any{"unknown": unknown})
	}
	return out, nil
}
