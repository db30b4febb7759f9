package controlplane

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server provides the HTTP API for devcoach.
type Server struct {
	service *Service
	addr    string
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	s := &Server{
		service: service,
		addr:    addr,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}

	router.GET("/health", s.handleHealth)

	tasks := router.Group("/tasks")
	{
		tasks.POST("", s.createTask)
		tasks.GET("", s.listTasks)
		tasks.GET("/current", s.currentTask)
		tasks.GET("/:id", s.getTask)
		tasks.PATCH("/:id", s.updateTask)
		tasks.DELETE("/:id", s.deleteTask)
		tasks.POST("/:id/start", s.startTask)
		tasks.POST("/:id/complete", s.completeTask)
		tasks.POST("/:id/hold", s.holdTask)
		tasks.PUT("/:id/status", s.setTaskStatus)
	}

	checkins := router.Group("/checkins")
	{
		checkins.POST("", s.addCheckin)
		checkins.GET("", s.listCheckins)
		checkins.DELETE("/:id", s.removeCheckin)
	}

	router.POST("/ask", s.ask)
	router.GET("/digest", s.digest)

	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	log.Printf("Starting devcoach daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// --- Request types ---

type taskRequest struct {
	Description string `json:"description"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type checkinRequest struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

// --- Handlers ---

func (s *Server) handleHealth(c *gin.Context) {
	health := s.service.Health(c.Request.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (s *Server) createTask(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.service.CreateTask(c.Request.Context(), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasks(c *gin.Context) {
	tasks, err := s.service.ListTasks(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) currentTask(c *gin.Context) {
	task, err := s.service.CurrentTask(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.service.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) updateTask(c *gin.Context) {
	var req taskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := s.service.UpdateTask(c.Request.Context(), c.Param("id"), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	msg, err := s.service.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) startTask(c *gin.Context) {
	msg, task, err := s.service.StartTask(c.Request.Context(), c.Param("id"))
	respondTransition(c, msg, task, err)
}

func (s *Server) completeTask(c *gin.Context) {
	msg, task, err := s.service.CompleteTask(c.Request.Context(), c.Param("id"))
	respondTransition(c, msg, task, err)
}

func (s *Server) holdTask(c *gin.Context) {
	msg, task, err := s.service.HoldTask(c.Request.Context(), c.Param("id"))
	respondTransition(c, msg, task, err)
}

func (s *Server) setTaskStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, task, err := s.service.SetTaskStatus(c.Request.Context(), c.Param("id"), req.Status)
	respondTransition(c, msg, task, err)
}

func (s *Server) addCheckin(c *gin.Context) {
	var req checkinRequest
	if !bindJSON(c, &req) {
		return
	}
	checkin, err := s.service.AddCheckin(c.Request.Context(), req.Time, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkin)
}

func (s *Server) listCheckins(c *gin.Context) {
	checkins, err := s.service.ListCheckins(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkins)
}

func (s *Server) removeCheckin(c *gin.Context) {
	msg, err := s.service.RemoveCheckin(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if !bindJSON(c, &req) {
		return
	}
	reply, err := s.service.Ask(c.Request.Context(), req.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (s *Server) digest(c *gin.Context) {
	summary, err := s.service.Digest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// --- Helpers ---

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("error: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondTransition(c *gin.Context, msg string, task any, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "task": task})
}
