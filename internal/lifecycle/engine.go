package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/exposureplan"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/geocoder"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
	"go.uber.org/zap"
)

// conflictRetries bounds automatic retries of transitions that lost a
// compare-and-swap race. Each retry starts from a fresh read.
const conflictRetries = 3

type TaskStore interface {
	Get(ctx context.Context, taskId model.TaskId) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
	// ApplyTransition persists the task iff its stored status still equals
	// expected; otherwise it fails with ErrorConflict.
	ApplyTransition(ctx context.Context, task *model.Task, expected model.Status) error
	ListExpiredCandidates(ctx context.Context, olderThan time.Time) ([]model.Task, error)
}

type Ledger interface {
	Balance(ctx context.Context, userId model.UserId) (*model.Balance, error)
	Debit(ctx context.Context, userId model.UserId, currency model.Currency, amount int64) (*model.Balance, error)
	Credit(ctx context.Context, userId model.UserId, currency model.Currency, amount int64) (*model.Balance, error)
}

type TransactionLog interface {
	Append(ctx context.Context, trans *model.TaskTrans) error
	ListFor(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error)
}

// Atomic runs fn as one unit: either every store write inside fn commits, or
// none do. The Postgres implementation opens a database transaction and threads
// it through the context.
type Atomic interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Charge is the dual-currency debit a poster pays to publish a draft.
type Charge struct {
	SuperCoin  int64 `json:"superCoin"`
	HelperCoin int64 `json:"helperCoin"`
}

type DraftFields struct {
	Title        string            `json:"title"`
	Category     string            `json:"category,omitempty"`
	Description  string            `json:"description,omitempty"`
	Salary       int64             `json:"salary,omitempty"`
	ExposurePlan string            `json:"exposurePlan,omitempty"`
	ImgUrls      []string          `json:"imgUrls,omitempty"`
	ContactInfo  model.ContactInfo `json:"contactInfo,omitempty"`
	Location     model.Location    `json:"location,omitempty"`
}

// Payload carries the transition-specific inputs: Draft for draft edits, Charge
// for publishing, HelperId for pairing, Submit for acceptance uploads.
type Payload struct {
	Draft    *DraftFields      `json:"draft,omitempty"`
	Charge   *Charge           `json:"charge,omitempty"`
	HelperId model.UserId      `json:"helperId,omitempty"`
	Submit   *model.SubmitInfo `json:"submit,omitempty"`
}

// Engine is the only component allowed to change a task's status. It owns the
// transition table checks and orchestrates ledger, transaction log, task store
// and geocoder so that every transition commits as one unit.
type Engine struct {
	tasks  TaskStore
	ledger Ledger
	trans  TransactionLog
	geo    geocoder.Geocoder
	atomic Atomic
	log    *zap.Logger
	now    func() time.Time
}

func NewEngine(tasks TaskStore, ledger Ledger, trans TransactionLog, geo geocoder.Geocoder, atomic Atomic, logger *zap.Logger) *Engine {
	return &Engine{
		tasks:  tasks,
		ledger: ledger,
		trans:  trans,
		geo:    geo,
		atomic: atomic,
		log:    logger,
		now:    time.Now,
	}
}

func (e *Engine) CreateDraft(ctx context.Context, posterId model.UserId, fields *DraftFields) (*model.Task, error) {
	now := e.now()
	task := &model.Task{
		ID:       model.NewTaskId(),
		PosterId: posterId,
		Status:   model.STATUS_DRAFT,
		Time:     model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	setDraftFields(task, fields)
	return e.tasks.Create(ctx, task)
}

// Get returns a task's details to its poster or its paired helper.
func (e *Engine) Get(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error) {
	task, err := e.tasks.Get(ctx, taskId)
	if err != nil {
		return nil, err
	}
	paired, _ := task.PairedHelper()
	if actor != task.PosterId && actor != paired {
		return nil, fmt.Errorf("user %s has no role on task %s: %w", actor, taskId, ErrorForbidden)
	}
	return task, nil
}

// Transition moves a task to the requested status on behalf of actor. Legality
// comes from the transition table; a publish from draft additionally geocodes
// the address, debits the poster and appends a transaction record, all within
// one atomic unit. Lost compare-and-swap races are retried on a fresh read.
func (e *Engine) Transition(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *Payload) (*model.Task, error) {
	if p == nil {
		p = &Payload{}
	}
	var task *model.Task
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		task, err = e.transitionOnce(ctx, taskId, to, actor, p)
		if !errors.Is(err, ErrorConflict) {
			return task, err
		}
		e.log.Warn("transition lost status race, retrying",
			zap.String("task_id", string(taskId)),
			zap.String("to", string(to)),
			zap.Int("attempt", attempt+1))
	}
	return nil, err
}

func (e *Engine) transitionOnce(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *Payload) (*model.Task, error) {
	task, err := e.tasks.Get(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if err := authorize(task, to, actor); err != nil {
		return nil, err
	}
	from := task.Status
	if !model.CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrorIllegalTransition)
	}

	if to == model.STATUS_PUBLISHED && from == model.STATUS_DRAFT {
		return e.publish(ctx, task, actor, p.Charge)
	}

	now := e.now()
	switch to {
	case model.STATUS_DRAFT:
		setDraftFields(task, p.Draft)
		task.Time.UpdatedAt = now
	case model.STATUS_IN_PROGRESS:
		if err := pairHelper(task, p.HelperId); err != nil {
			return nil, err
		}
	case model.STATUS_SUBMITTED:
		if p.Submit != nil {
			info := *p.Submit
			info.CreatedAt = now
			task.SubmitInfo = &info
		}
	}
	task.Status = to
	task.Time.Stamp(to, now)
	if err := e.tasks.ApplyTransition(ctx, task, from); err != nil {
		return nil, err
	}
	e.log.Info("task transitioned",
		zap.String("task_id", string(taskId)),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return task, nil
}

// publish performs the only financially-effective transition. Ordering matters:
// geocoding and both balance checks resolve before any mutation, so a failure
// here leaves task and balance untouched and no rollback path is needed.
func (e *Engine) publish(ctx context.Context, task *model.Task, actor model.UserId, charge *Charge) (*model.Task, error) {
	if charge == nil {
		charge = &Charge{}
	}
	if charge.SuperCoin < 0 || charge.HelperCoin < 0 {
		return nil, fmt.Errorf("negative charge %+v: %w", *charge, ErrorIllegalTransition)
	}

	coords, err := e.geo.Resolve(ctx, task.Location.Address)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", task.Location.Address, ErrorAddressNotFound)
	}

	balance, err := e.ledger.Balance(ctx, actor)
	if err != nil {
		return nil, err
	}
	// TODO: confirm with product whether spending the full balance should be
	// allowed; the >= guard deliberately keeps the original reject-on-equality.
	if charge.SuperCoin >= balance.SuperCoin {
		return nil, &InsufficientBalanceError{Currency: model.COIN_SUPER, Balance: balance.SuperCoin}
	}
	if charge.HelperCoin >= balance.HelperCoin {
		return nil, &InsufficientBalanceError{Currency: model.COIN_HELPER, Balance: balance.HelperCoin}
	}

	now := e.now()
	err = e.atomic.InTx(ctx, func(ctx context.Context) error {
		if _, err := e.ledger.Debit(ctx, actor, model.COIN_SUPER, charge.SuperCoin); err != nil {
			return err
		}
		if _, err := e.ledger.Debit(ctx, actor, model.COIN_HELPER, charge.HelperCoin); err != nil {
			return err
		}
		record := &model.TaskTrans{
			ID:           model.NewTransId(),
			TaskId:       task.ID,
			UserId:       actor,
			Tag:          model.TAG_PUBLISH_TASK,
			Role:         model.ROLE_POSTER,
			SuperCoin:    -charge.SuperCoin,
			HelperCoin:   -charge.HelperCoin,
			Salary:       task.Salary,
			ExposurePlan: exposureplan.Price(task.ExposurePlan),
			Desc:         []string{"salary withheld", task.ExposurePlan},
			CreatedAt:    now,
		}
		if err := e.trans.Append(ctx, record); err != nil {
			return err
		}
		task.Location.Longitude = &coords.Lng
		task.Location.Latitude = &coords.Lat
		task.Status = model.STATUS_PUBLISHED
		task.Time.Stamp(model.STATUS_PUBLISHED, now)
		return e.tasks.ApplyTransition(ctx, task, model.STATUS_DRAFT)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("task published",
		zap.String("task_id", string(task.ID)),
		zap.Int64("super_coin", charge.SuperCoin),
		zap.Int64("helper_coin", charge.HelperCoin))
	return task, nil
}

// Apply records a helper's application on a published task.
func (e *Engine) Apply(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error) {
	var task *model.Task
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		task, err = e.applyOnce(ctx, taskId, helperId)
		if !errors.Is(err, ErrorConflict) {
			return task, err
		}
	}
	return nil, err
}

func (e *Engine) applyOnce(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error) {
	task, err := e.tasks.Get(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if helperId == task.PosterId {
		return nil, fmt.Errorf("poster cannot apply to own task: %w", ErrorForbidden)
	}
	if task.Status != model.STATUS_PUBLISHED {
		return nil, fmt.Errorf("task %s is %s, not open for applications: %w", taskId, task.Status, ErrorIllegalTransition)
	}
	if task.HasApplied(helperId) {
		return nil, fmt.Errorf("helper %s already applied: %w", helperId, ErrorConflict)
	}
	task.Helpers = append(task.Helpers, model.Helper{HelperId: helperId, Status: model.HELPER_APPLIED})
	task.Time.UpdatedAt = e.now()
	if err := e.tasks.ApplyTransition(ctx, task, model.STATUS_PUBLISHED); err != nil {
		return nil, err
	}
	return task, nil
}

// ExpireStale moves published tasks older than olderThan to expired, acting as
// the system actor. Individual failures are logged and skipped so one bad row
// cannot stall the sweep.
func (e *Engine) ExpireStale(ctx context.Context, olderThan time.Time) (int, error) {
	candidates, err := e.tasks.ListExpiredCandidates(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, task := range candidates {
		if _, err := e.Transition(ctx, task.ID, model.STATUS_EXPIRED, model.SystemActor, nil); err != nil {
			e.log.Error("expire task", zap.String("task_id", string(task.ID)), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (e *Engine) BalanceFor(ctx context.Context, userId model.UserId) (*model.Balance, error) {
	return e.ledger.Balance(ctx, userId)
}

func (e *Engine) TransactionsFor(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error) {
	return e.trans.ListFor(ctx, userId)
}

func (e *Engine) Geocode(ctx context.Context, address string) (*geocoder.Coordinates, error) {
	coords, err := e.geo.Resolve(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", address, ErrorAddressNotFound)
	}
	return coords, nil
}

func authorize(task *model.Task, to model.Status, actor model.UserId) error {
	switch to {
	case model.STATUS_SUBMITTED:
		paired, ok := task.PairedHelper()
		if !ok || actor != paired {
			return fmt.Errorf("only the paired helper may submit: %w", ErrorForbidden)
		}
	case model.STATUS_EXPIRED:
		if actor != model.SystemActor && actor != task.PosterId {
			return fmt.Errorf("user %s may not expire task %s: %w", actor, task.ID, ErrorForbidden)
		}
	default:
		if actor != task.PosterId {
			return fmt.Errorf("user %s does not own task %s: %w", actor, task.ID, ErrorForbidden)
		}
	}
	return nil
}

// pairHelper promotes the chosen applicant and demotes every other one, keeping
// the at-most-one-paired invariant.
func pairHelper(task *model.Task, helperId model.UserId) error {
	if helperId == "" {
		return fmt.Errorf("no helper chosen: %w", ErrorNotFound)
	}
	found := false
	for i := range task.Helpers {
		if task.Helpers[i].HelperId == helperId {
			task.Helpers[i].Status = model.HELPER_PAIRED
			found = true
		} else {
			task.Helpers[i].Status = model.HELPER_REJECTED
		}
	}
	if !found {
		return fmt.Errorf("helper %s has not applied to task %s: %w", helperId, task.ID, ErrorNotFound)
	}
	return nil
}

func setDraftFields(task *model.Task, fields *DraftFields) {
	if fields == nil {
		return
	}
	task.Title = fields.Title
	task.Category = fields.Category
	task.Description = fields.Description
	task.Salary = fields.Salary
	task.ExposurePlan = fields.ExposurePlan
	task.ImgUrls = fields.ImgUrls
	task.ContactInfo = fields.ContactInfo
	task.Location = fields.Location
}
