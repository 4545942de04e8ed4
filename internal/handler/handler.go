package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/geocoder"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Engine is the slice of the lifecycle engine the HTTP layer needs.
type Engine interface {
	CreateDraft(ctx context.Context, posterId model.UserId, fields *lifecycle.DraftFields) (*model.Task, error)
	Get(ctx context.Context, taskId model.TaskId, actor model.UserId) (*model.Task, error)
	Transition(ctx context.Context, taskId model.TaskId, to model.Status, actor model.UserId, p *lifecycle.Payload) (*model.Task, error)
	Apply(ctx context.Context, taskId model.TaskId, helperId model.UserId) (*model.Task, error)
	BalanceFor(ctx context.Context, userId model.UserId) (*model.Balance, error)
	TransactionsFor(ctx context.Context, userId model.UserId) ([]model.TaskTrans, error)
	Geocode(ctx context.Context, address string) (*geocoder.Coordinates, error)
}

type Handler struct {
	engine    Engine
	zapLogger *zap.Logger
}

func SetupHandlers(r *gin.Engine, engine Engine, zapLogger *zap.Logger) {
	h := &Handler{engine: engine, zapLogger: zapLogger}
	// Set up routes
	r.POST("/tasks", h.CreateDraft)
	r.GET("/tasks/:TASK_ID", h.GetTask)
	r.PUT("/tasks/:TASK_ID/draft", h.UpdateDraft)
	r.POST("/tasks/:TASK_ID/publish", h.Publish)
	r.POST("/tasks/:TASK_ID/unpublish", h.transitionRoute(model.STATUS_UNPUBLISHED))
	r.POST("/tasks/:TASK_ID/republish", h.transitionRoute(model.STATUS_PUBLISHED))
	r.DELETE("/tasks/:TASK_ID", h.transitionRoute(model.STATUS_DELETED))
	r.POST("/tasks/:TASK_ID/apply", h.Apply)
	r.POST("/tasks/:TASK_ID/confirm-helper", h.ConfirmHelper)
	r.POST("/tasks/:TASK_ID/upload-acceptance", h.UploadAcceptance)
	r.POST("/tasks/:TASK_ID/confirm-acceptance", h.transitionRoute(model.STATUS_CONFIRMED))
	r.POST("/tasks/:TASK_ID/complete", h.transitionRoute(model.STATUS_COMPLETED))
	r.GET("/geocoding", h.CheckGeocoding)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/balance", h.GetBalance)
}

// actor reads the authenticated user id. Authentication itself is handled
// upstream; this service trusts the X-User-Id header.
func (h *Handler) actor(c *gin.Context) (model.UserId, bool) {
	userId := c.GetHeader("X-User-Id")
	if userId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-User-Id header"})
		return "", false
	}
	return model.UserId(userId), true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var insufficient *lifecycle.InsufficientBalanceError
	switch {
	case errors.Is(err, lifecycle.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, lifecycle.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, lifecycle.ErrorIllegalTransition):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Illegal transition"})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance", "currency": insufficient.Currency})
	case errors.Is(err, lifecycle.ErrorInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, lifecycle.ErrorAddressNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
	case errors.Is(err, lifecycle.ErrorConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict"})
	default:
		h.zapLogger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func (h *Handler) CreateDraft(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var fields lifecycle.DraftFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.zapLogger.Info("Draft requested", zap.String("poster_id", string(actor)))
	task, err := h.engine.CreateDraft(c.Request.Context(), actor, &fields)
	if err != nil {
		h.zapLogger.Error("create draft", zap.String("poster_id", string(actor)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) GetTask(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	task, err := h.engine.Get(c.Request.Context(), taskId, actor)
	if err != nil {
		h.zapLogger.Error("get task", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) UpdateDraft(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var fields lifecycle.DraftFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	h.zapLogger.Info("Draft update requested", zap.String("task_id", string(taskId)))
	task, err := h.engine.Transition(c.Request.Context(), taskId, model.STATUS_DRAFT, actor,
		&lifecycle.Payload{Draft: &fields})
	if err != nil {
		h.zapLogger.Error("update draft", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) Publish(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var charge lifecycle.Charge
	if err := c.ShouldBindJSON(&charge); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	h.zapLogger.Info("Publish requested",
		zap.String("task_id", string(taskId)),
		zap.Int64("super_coin", charge.SuperCoin),
		zap.Int64("helper_coin", charge.HelperCoin))
	task, err := h.engine.Transition(c.Request.Context(), taskId, model.STATUS_PUBLISHED, actor,
		&lifecycle.Payload{Charge: &charge})
	if err != nil {
		h.zapLogger.Error("publish task", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) Apply(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	h.zapLogger.Info("Application requested",
		zap.String("task_id", string(taskId)), zap.String("helper_id", string(actor)))
	task, err := h.engine.Apply(c.Request.Context(), taskId, actor)
	if err != nil {
		h.zapLogger.Error("apply to task", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) ConfirmHelper(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var body struct {
		HelperId model.UserId `json:"helperId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	h.zapLogger.Info("Helper confirmation requested",
		zap.String("task_id", string(taskId)), zap.String("helper_id", string(body.HelperId)))
	task, err := h.engine.Transition(c.Request.Context(), taskId, model.STATUS_IN_PROGRESS, actor,
		&lifecycle.Payload{HelperId: body.HelperId})
	if err != nil {
		h.zapLogger.Error("confirm helper", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) UploadAcceptance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var submit model.SubmitInfo
	if err := c.ShouldBindJSON(&submit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskId := model.TaskId(c.Param("TASK_ID"))
	h.zapLogger.Info("Acceptance upload requested", zap.String("task_id", string(taskId)))
	task, err := h.engine.Transition(c.Request.Context(), taskId, model.STATUS_SUBMITTED, actor,
		&lifecycle.Payload{Submit: &submit})
	if err != nil {
		h.zapLogger.Error("upload acceptance", zap.String("task_id", string(taskId)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) transitionRoute(to model.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := h.actor(c)
		if !ok {
			return
		}
		taskId := model.TaskId(c.Param("TASK_ID"))
		h.zapLogger.Info("Transition requested",
			zap.String("task_id", string(taskId)), zap.String("to", string(to)))
		task, err := h.engine.Transition(c.Request.Context(), taskId, to, actor, nil)
		if err != nil {
			h.zapLogger.Error("transition task",
				zap.String("task_id", string(taskId)), zap.String("to", string(to)), zap.Error(err))
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func (h *Handler) CheckGeocoding(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing address"})
		return
	}
	coords, err := h.engine.Geocode(c.Request.Context(), address)
	if err != nil {
		h.zapLogger.Error("geocode address", zap.String("address", address), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "location": coords})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	list, err := h.engine.TransactionsFor(c.Request.Context(), actor)
	if err != nil {
		h.zapLogger.Error("list transactions", zap.String("user_id", string(actor)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetBalance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	balance, err := h.engine.BalanceFor(c.Request.Context(), actor)
	if err != nil {
		h.zapLogger.Error("get balance", zap.String("user_id", string(actor)), zap.Error(err))
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}
