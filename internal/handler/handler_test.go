package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/geocoder"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"
)

type engineMock struct {
	createDraft     func(ctx context.Context, posterId model.UserId, fields *lifecycle.DraftFields) (*model.Task, error)
	get             func(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error)
	transition      func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error)
	apply           func(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error)
	balanceFor      func(ctx context.Context, userId model.UserId) (*model.Balance, error)
	transactionsFor func(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error)
	geocode         func(ctx context.Context, address string) (*geocoder.Coordinates, error)
}

func NewEngineMock() *engineMock {
	return &engineMock{
		createDraft: func(ctx context.Context, posterId model.UserId, fields *lifecycle.DraftFields) (*model.Task, error) {
			return nil, nil
		},
		get: func(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error) {
			return nil, nil
		},
		transition: func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
			return nil, nil
		},
		apply: func(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error) {
			return nil, nil
		},
		balanceFor: func(ctx context.Context, userId model.UserId) (*model.Balance, error) {
			return nil, nil
		},
		transactionsFor: func(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error) {
			return nil, nil
		},
		geocode: func(ctx context.Context, address string) (*geocoder.Coordinates, error) {
			return nil, nil
		},
	}
}

func (e *engineMock) CreateDraft(ctx context.Context, posterId model.UserId, fields *lifecycle.DraftFields) (*model.Task, error) {
	return e.createDraft(ctx, posterId, fields)
}

func (e *engineMock) Get(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error) {
	return e.get(ctx, taskId, actor)
}

func (e *engineMock) Transition(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
	return e.transition(ctx, taskId, to, actor, p)
}

func (e *engineMock) Apply(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error) {
	return e.apply(ctx, taskId, helperId)
}

func (e *engineMock) BalanceFor(ctx context.Context, userId model.UserId) (*model.Balance, error) {
	return e.balanceFor(ctx, userId)
}

func (e *engineMock) TransactionsFor(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error) {
	return e.transactionsFor(ctx, userId)
}

func (e *engineMock) Geocode(ctx context.Context, address string) (*geocoder.Coordinates, error) {
	return e.geocode(ctx, address)
}

func setupTest(t *testing.T) (*gin.Engine, *engineMock) {
	r := gin.Default()
	mock := NewEngineMock()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("Creating logger %s", err)
	}
	SetupHandlers(r, mock, logger)
	return r, mock
}

func TestCreateDraft(t *testing.T) {
	r, mock := setupTest(t)

	taskExpected := &model.Task{
		ID:       "task-1",
		PosterId: "user-1",
		Status:   model.STATUS_DRAFT,
		Title:    "Walk my dog",
	}
	mock.createDraft = func(ctx context.Context, posterId model.UserId, fields *lifecycle.DraftFields) (*model.Task, error) {
		assert.Equal(t, posterId, model.UserId("user-1"))
		assert.Equal(t, fields.Title, "Walk my dog")
		return taskExpected, nil
	}

	requestJson, err := json.Marshal(lifecycle.DraftFields{Title: "Walk my dog"})
	if err != nil {
		t.Fatalf("marshal request %s", err)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks", strings.NewReader(string(requestJson)))
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
	var response model.Task
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("unmarshal response %s", err)
	}
	assert.Equal(t, response, *taskExpected)
}

func TestCreateDraftMissingUserHeader(t *testing.T) {
	r, _ := setupTest(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks", strings.NewReader(`{"title":"x"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 401)
}

func TestPublish(t *testing.T) {
	r, mock := setupTest(t)

	taskExpected := &model.Task{
		ID:       "task-1",
		PosterId: "user-1",
		Status:   model.STATUS_PUBLISHED,
	}
	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		assert.Equal(t, taskId, model.TaskId("task-1"))
		assert.Equal(t, to, model.STATUS_PUBLISHED)
		assert.Equal(t, actor, model.UserId("user-1"))
		assert.Equal(t, p.Charge.SuperCoin, int64(3))
		assert.Equal(t, p.Charge.HelperCoin, int64(2))
		return taskExpected, nil
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/publish", strings.NewReader(`{"superCoin":3,"helperCoin":2}`))
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
	var response model.Task
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("unmarshal response %s", err)
	}
	assert.Equal(t, response, *taskExpected)
}

func TestPublishInsufficientBalance(t *testing.T) {
	r, mock := setupTest(t)

	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		return nil, &lifecycle.InsufficientBalanceError{Currency: model.COIN_SUPER, Balance: 10}
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/publish", strings.NewReader(`{"superCoin":15,"helperCoin":2}`))
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 400)
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("unmarshal response %s", err)
	}
	assert.Equal(t, response["currency"], string(model.COIN_SUPER))
}

func TestPublishAddressNotFound(t *testing.T) {
	r, mock := setupTest(t)

	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		return nil, fmt.Errorf("geocoding %q: %w", "nowhere", lifecycle.ErrorAddressNotFound)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/publish", strings.NewReader(`{"superCoin":3,"helperCoin":2}`))
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 404)
}

func TestTransitionIllegal(t *testing.T) {
	r, mock := setupTest(t)

	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		return nil, fmt.Errorf("completed -> published: %w", lifecycle.ErrorIllegalTransition)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/republish", nil)
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 405)
}

func TestTransitionForbidden(t *testing.T) {
	r, mock := setupTest(t)

	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		return nil, fmt.Errorf("not the owner: %w", lifecycle.ErrorForbidden)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/tasks/task-1", nil)
	req.Header.Set("X-User-Id", "user-2")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 403)
}

func TestGetTaskNotFound(t *testing.T) {
	r, mock := setupTest(t)

	mock.get = func(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error) {
		assert.Equal(t, taskId, model.TaskId("task-404"))
		return nil, fmt.Errorf("task %s: %w", taskId, lifecycle.ErrorNotFound)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/tasks/task-404", nil)
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 404)
}

func TestApplyConflict(t *testing.T) {
	r, mock := setupTest(t)

	mock.apply = func(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error) {
		assert.Equal(t, helperId, model.UserId("helper-1"))
		return nil, fmt.Errorf("already applied: %w", lifecycle.ErrorConflict)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/apply", nil)
	req.Header.Set("X-User-Id", "helper-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 409)
}

func TestConfirmHelper(t *testing.T) {
	r, mock := setupTest(t)

	mock.transition = func(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error) {
		assert.Equal(t, to, model.STATUS_IN_PROGRESS)
		assert.Equal(t, p.HelperId, model.UserId("helper-9"))
		return &model.Task{ID: taskId, Status: model.STATUS_IN_PROGRESS}, nil
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tasks/task-1/confirm-helper", strings.NewReader(`{"helperId":"helper-9"}`))
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
}

func TestCheckGeocoding(t *testing.T) {
	r, mock := setupTest(t)

	mock.geocode = func(ctx context.Context, address string) (*geocoder.Coordinates, error) {
		assert.Equal(t, address, "1 Example Rd")
		return &geocoder.Coordinates{Lat: 25.03, Lng: 121.56}, nil
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/geocoding?address=1+Example+Rd", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
}

func TestCheckGeocodingNotFound(t *testing.T) {
	r, mock := setupTest(t)

	mock.geocode = func(ctx context.Context, address string) (*geocoder.Coordinates, error) {
		return nil, fmt.Errorf("geocoding %q: %w", address, lifecycle.ErrorAddressNotFound)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/geocoding?address=nowhere", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 404)
}

func TestGetBalance(t *testing.T) {
	r, mock := setupTest(t)

	balanceExpected := &model.Balance{UserId: "user-1", SuperCoin: 10, HelperCoin: 5}
	mock.balanceFor = func(ctx context.Context, userId model.UserId) (*model.Balance, error) {
		assert.Equal(t, userId, model.UserId("user-1"))
		return balanceExpected, nil
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/balance", nil)
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
	var response model.Balance
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("unmarshal response %s", err)
	}
	assert.Equal(t, response, *balanceExpected)
}

func TestListTransactions(t *testing.T) {
	r, mock := setupTest(t)

	mock.transactionsFor = func(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error) {
		return []model.TaskTrans{
			{ID: "t-1", UserId: userId, Tag: model.TAG_PUBLISH_TASK, SuperCoin: -3, HelperCoin: -2},
		}, nil
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/transactions", nil)
	req.Header.Set("X-User-Id", "user-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, w.Code, 200)
	var response []model.TaskTrans
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("unmarshal response %s", err)
	}
	assert.Equal(t, len(response), 1)
	assert.Equal(t, response[0].SuperCoin, int64(-3))
}
