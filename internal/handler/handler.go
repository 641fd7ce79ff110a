// Package handler mounts the registration REST surface on gin.
package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"studentreg/internal/auth"
	"studentreg/internal/config"
	"studentreg/internal/student"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_total",
		Help: "Records created, by kind.",
	}, []string{"kind"})
	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_conflicts_total",
		Help: "Creates rejected as duplicates, by kind.",
	}, []string{"kind"})
)

// Handler holds the service and config needed by the routes.
type Handler struct {
	svc *student.Service
	cfg config.App

	healthChecks []func() bool
}

// New builds a handler. healthChecks report dependency liveness for
// /health.
func New(svc *student.Service, cfg config.App, healthChecks ...func() bool) *Handler {
	return &Handler{svc: svc, cfg: cfg, healthChecks: healthChecks}
}

// Mount registers all routes on the router.
func (h *Handler) Mount(r *gin.Engine) {
	r.GET("/health", h.health)
	r.POST("/auth/token", h.issueToken)

	guard := auth.AdminAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer)

	api := r.Group("/api")
	{
		api.GET("/students", h.listStudents)
		api.GET("/students/count", h.countStudents)
		api.GET("/students/search/:term", h.searchStudents)
		api.GET("/students/:id", h.getStudent)
		api.POST("/students", h.createStudent)
		api.DELETE("/students/:id", guard, h.deleteStudent)

		api.GET("/contacts", h.listContacts)
		api.GET("/contacts/count", h.countContacts)
		api.GET("/contacts/search/:term", h.searchContacts)
		api.GET("/contacts/:id", h.getContact)
		api.POST("/contacts", h.createContact)
		api.DELETE("/contacts/:id", guard, h.deleteContact)
	}
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	for _, check := range h.healthChecks {
		if !check() {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// issueToken exchanges the admin secret for a short-lived JWT used on
// destructive routes.
func (h *Handler) issueToken(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "secret required"})
		return
	}
	if h.cfg.AdminSecret == "" || req.Secret != h.cfg.AdminSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid secret"})
		return
	}
	token, exp, err := auth.Issue("admin", "admin", h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "expires_at": exp.Unix()})
}

// writeError maps service failures to the response envelope.
// Failures carry an "error" key; successes carry "message".
func writeError(c *gin.Context, err error, notFoundMsg string) {
	var verr *student.ValidationError
	var cerr *student.ConflictError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message, "fields": verr.Fields})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": cerr.Message})
	case errors.Is(err, student.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": notFoundMsg})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

// -------- Students --------

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context())
	if err != nil {
		writeError(c, err, "Student not found")
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(students), "data": students})
}

func (h *Handler) countStudents(c *gin.Context) {
	n, err := h.svc.CountStudents(c.Request.Context())
	if err != nil {
		writeError(c, err, "Student not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) searchStudents(c *gin.Context) {
	students, err := h.svc.SearchStudents(c.Request.Context(), c.Param("term"))
	if err != nil {
		writeError(c, err, "Student not found")
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(students), "data": students})
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.svc.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Student not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": st})
}

func (h *Handler) createStudent(c *gin.Context) {
	var in student.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	st, err := h.svc.CreateStudent(c.Request.Context(), in)
	if err != nil {
		var cerr *student.ConflictError
		if errors.As(err, &cerr) {
			conflictsTotal.WithLabelValues("students").Inc()
		}
		writeError(c, err, "Student not found")
		return
	}
	registrationsTotal.WithLabelValues("students").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Student registered successfully",
		"data":    st,
	})
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if err := h.svc.DeleteStudent(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "Student not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Student deleted successfully"})
}

// -------- Contacts --------

func (h *Handler) listContacts(c *gin.Context) {
	contacts, err := h.svc.ListContacts(c.Request.Context())
	if err != nil {
		writeError(c, err, "Contact not found")
		return
	}
	if contacts == nil {
		contacts = []student.Contact{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(contacts), "data": contacts})
}

func (h *Handler) countContacts(c *gin.Context) {
	n, err := h.svc.CountContacts(c.Request.Context())
	if err != nil {
		writeError(c, err, "Contact not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

func (h *Handler) searchContacts(c *gin.Context) {
	contacts, err := h.svc.SearchContacts(c.Request.Context(), c.Param("term"))
	if err != nil {
		writeError(c, err, "Contact not found")
		return
	}
	if contacts == nil {
		contacts = []student.Contact{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(contacts), "data": contacts})
}

func (h *Handler) getContact(c *gin.Context) {
	ct, err := h.svc.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Contact not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": ct})
}

func (h *Handler) createContact(c *gin.Context) {
	var in student.ContactInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	ct, err := h.svc.CreateContact(c.Request.Context(), in)
	if err != nil {
		var cerr *student.ConflictError
		if errors.As(err, &cerr) {
			conflictsTotal.WithLabelValues("contacts").Inc()
		}
		writeError(c, err, "Contact not found")
		return
	}
	registrationsTotal.WithLabelValues("contacts").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Contact saved successfully",
		"data":    ct,
	})
}

func (h *Handler) deleteContact(c *gin.Context) {
	if err := h.svc.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "Contact not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact deleted successfully"})
}
