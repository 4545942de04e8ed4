package model

import (
	"time"

	"github.com/google/uuid"
)

type TaskId string
type UserId string

// SystemActor marks transitions initiated by background jobs rather than a user.
const SystemActor UserId = "system"

type Status string

const (
	STATUS_DRAFT       Status = "draft"
	STATUS_PUBLISHED   Status = "published"
	STATUS_UNPUBLISHED Status = "unpublished"
	STATUS_DELETED     Status = "deleted"
	STATUS_IN_PROGRESS Status = "inProgress"
	STATUS_SUBMITTED   Status = "submitted"
	STATUS_CONFIRMED   Status = "confirmed"
	STATUS_COMPLETED   Status = "completed"
	STATUS_EXPIRED     Status = "expired"
)

type HelperStatus string

const (
	HELPER_APPLIED  HelperStatus = "applied"
	HELPER_PAIRED   HelperStatus = "paired"
	HELPER_REJECTED HelperStatus = "rejected"
)

type Currency string

const (
	COIN_SUPER  Currency = "superCoin"
	COIN_HELPER Currency = "helperCoin"
)

type Role string

const (
	ROLE_POSTER Role = "poster"
	ROLE_HELPER Role = "helper"
)

// transitions is the full lifecycle table. A status missing from the map is terminal.
// draft -> draft stands for in-place draft edits, allowed only pre-publish.
var transitions = map[Status][]Status{
	STATUS_DRAFT:       {STATUS_DRAFT, STATUS_PUBLISHED, STATUS_DELETED},
	STATUS_PUBLISHED:   {STATUS_UNPUBLISHED, STATUS_DELETED, STATUS_IN_PROGRESS, STATUS_EXPIRED},
	STATUS_UNPUBLISHED: {STATUS_PUBLISHED, STATUS_DELETED, STATUS_EXPIRED},
	STATUS_IN_PROGRESS: {STATUS_SUBMITTED},
	STATUS_SUBMITTED:   {STATUS_CONFIRMED},
	STATUS_CONFIRMED:   {STATUS_COMPLETED},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Helper struct {
	HelperId UserId       `json:"helperId"`
	Status   HelperStatus `json:"status"`
}

type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Location struct {
	City      string   `json:"city,omitempty"`
	Dist      string   `json:"dist,omitempty"`
	Address   string   `json:"address,omitempty"`
	Landmark  string   `json:"landmark,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
}

type SubmitInfo struct {
	ImgUrls   []string  `json:"imgUrls,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Timestamps is the task's event trail. Lifecycle stamps are written exactly once,
// the first time their transition fires, and never overwritten.
type Timestamps struct {
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	UnpublishedAt *time.Time `json:"unpublishedAt,omitempty"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	InProgressAt  *time.Time `json:"inProgressAt,omitempty"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	ExpiredAt     *time.Time `json:"expiredAt,omitempty"`
}

// Stamp records the instant a transition fired. Already-set stamps are left alone.
func (t *Timestamps) Stamp(status Status, now time.Time) {
	set := func(field **time.Time) {
		if *field == nil {
			ts := now
			*field = &ts
		}
	}
	switch status {
	case STATUS_PUBLISHED:
		set(&t.PublishedAt)
	case STATUS_UNPUBLISHED:
		set(&t.UnpublishedAt)
	case STATUS_DELETED:
		set(&t.DeletedAt)
	case STATUS_IN_PROGRESS:
		set(&t.InProgressAt)
	case STATUS_SUBMITTED:
		set(&t.SubmittedAt)
	case STATUS_CONFIRMED:
		set(&t.ConfirmedAt)
	case STATUS_COMPLETED:
		set(&t.CompletedAt)
	case STATUS_EXPIRED:
		set(&t.ExpiredAt)
	}
	t.UpdatedAt = now
}

type Task struct {
	ID           TaskId      `json:"taskId"`
	PosterId     UserId      `json:"posterId"`
	Status       Status      `json:"status"`
	Title        string      `json:"title"`
	Category     string      `json:"category,omitempty"`
	Description  string      `json:"description,omitempty"`
	Salary       int64       `json:"salary,omitempty"`
	ExposurePlan string      `json:"exposurePlan,omitempty"`
	ImgUrls      []string    `json:"imgUrls,omitempty"`
	ContactInfo  ContactInfo `json:"contactInfo"`
	Location     Location    `json:"location"`
	Helpers      []Helper    `json:"helpers,omitempty"`
	SubmitInfo   *SubmitInfo `json:"submitInfo,omitempty"`
	Time         Timestamps  `json:"time"`
}

// PairedHelper returns the single paired helper, if any.
func (t *Task) PairedHelper() (UserId, bool) {
	for _, h := range t.Helpers {
		if h.Status == HELPER_PAIRED {
			return h.HelperId, true
		}
	}
	return "", false
}

func (t *Task) HasApplied(helperId UserId) bool {
	for _, h := range t.Helpers {
		if h.HelperId == helperId {
			return true
		}
	}
	return false
}

// Balance holds a user's two coin counters. Both are kept non-negative by the
// guarded debit in the ledger.
type Balance struct {
	UserId     UserId `json:"userId"`
	SuperCoin  int64  `json:"superCoin"`
	HelperCoin int64  `json:"helperCoin"`
}

func (b *Balance) Amount(c Currency) int64 {
	if c == COIN_HELPER {
		return b.HelperCoin
	}
	return b.SuperCoin
}

// TaskTrans is one immutable transaction-log record. Deltas are signed; the sum of
// a user's deltas plus their initial balance reproduces the current balance.
type TaskTrans struct {
	ID           string    `json:"id"`
	TaskId       TaskId    `json:"taskId"`
	UserId       UserId    `json:"userId"`
	Tag          string    `json:"tag"`
	Role         Role      `json:"role"`
	SuperCoin    int64     `json:"superCoin"`
	HelperCoin   int64     `json:"helperCoin"`
	Salary       int64     `json:"salary,omitempty"`
	ExposurePlan int64     `json:"exposurePlan,omitempty"`
	Desc         []string  `json:"desc,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

const TAG_PUBLISH_TASK = "publishTask"

func NewTaskId() TaskId {
	return TaskId(uuid.NewString())
}

func NewTransId() string {
	return uuid.NewString()
}
