package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/procflow/internal/lifecycle"
	"github.com/example/procflow/internal/metrics"
	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/repository"
	"github.com/example/procflow/internal/service"
)

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine      *gin.Engine
	requests    *repository.RequestRepository
	procurement *service.ProcurementService
}

// NewServer constructs a new API server and registers routes.
func NewServer(repo *repository.RequestRepository, procurement *service.ProcurementService) *Server {
	router := gin.Default()
	srv := &Server{Engine: router, requests: repo, procurement: procurement}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.POST("/requests", s.createRequest)
	api.GET("/requests", s.listRequests)
	api.GET("/requests/:id", s.getRequest)
	api.POST("/requests/:id/advance", s.advanceRequest)
	api.POST("/requests/:id/purchase", s.recordPurchase)
	api.POST("/requests/:id/decision", s.decideRequest)
	api.GET("/requests/:id/sla", s.slaStatus)
	api.GET("/metrics/:type", s.getMetric)
	api.GET("/dashboard", s.getDashboard)
	api.GET("/alerts", s.listAlerts)
}

type actorPayload struct {
	Username string `json:"username" binding:"required"`
	Level    string `json:"level" binding:"required"`
}

func (p actorPayload) actor() (models.Actor, error) {
	level, err := models.ParseAuthorizationLevel(p.Level)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{Username: p.Username, Level: level}, nil
}

func (s *Server) createRequest(c *gin.Context) {
	var payload struct {
		Requester       string          `json:"requester" binding:"required"`
		Department      string          `json:"department" binding:"required"`
		Description     string          `json:"description"`
		ApplicationSite string          `json:"application_site"`
		Notes           string          `json:"notes"`
		Priority        models.Priority `json:"priority"`
		EstimatedValue  *float64        `json:"estimated_value"`
		Actor           actorPayload    `json:"actor" binding:"required"`
		Note            string          `json:"note"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, err := payload.Actor.actor()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request := &models.Request{
		Requester:       payload.Requester,
		Department:      payload.Department,
		Description:     payload.Description,
		ApplicationSite: payload.ApplicationSite,
		Notes:           payload.Notes,
		Priority:        payload.Priority,
		EstimatedValue:  payload.EstimatedValue,
	}

	if err := s.procurement.CreateRequest(c.Request.Context(), request, actor, payload.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (s *Server) listRequests(c *gin.Context) {
	requests, err := s.requests.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (s *Server) getRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	request, err := s.requests.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) advanceRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var payload struct {
		TargetStage models.Stage `json:"target_stage" binding:"required"`
		Note        string       `json:"note"`
		Actor       actorPayload `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, err := payload.Actor.actor()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := s.procurement.Advance(c.Request.Context(), id, payload.TargetStage, actor, payload.Note)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) recordPurchase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var payload struct {
		FinalValue *float64 `json:"final_value" binding:"required"`
		Notes      string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := s.procurement.RecordPurchase(c.Request.Context(), id, *payload.FinalValue, payload.Notes)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) decideRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var payload struct {
		Approved *bool        `json:"approved" binding:"required"`
		Note     string       `json:"note"`
		Actor    actorPayload `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor, err := payload.Actor.actor()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := s.procurement.Decide(c.Request.Context(), id, *payload.Approved, actor, payload.Note)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) slaStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	status, err := s.procurement.SLAStatusFor(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getMetric(c *gin.Context) {
	metricType := metrics.MetricType(c.Param("type"))
	period := metrics.Period(c.DefaultQuery("period", string(metrics.PeriodAll)))
	force := c.Query("force") == "true"

	value, err := s.procurement.Metric(c.Request.Context(), metricType, period, force)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric_type": metricType,
		"period":      period,
		"value":       value,
	})
}

func (s *Server) getDashboard(c *gin.Context) {
	period := metrics.Period(c.DefaultQuery("period", string(metrics.PeriodMonth)))
	dashboard, err := s.procurement.Dashboard(c.Request.Context(), period)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts, err := s.procurement.Alerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// statusForError maps engine validation failures onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInsufficientAuthorization):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrTerminalState),
		errors.Is(err, lifecycle.ErrAlreadyDecided),
		errors.Is(err, lifecycle.ErrPurchaseNotReached):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, metrics.ErrUnknownMetricType),
		errors.Is(err, metrics.ErrUnknownPeriod):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
