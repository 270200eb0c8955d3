package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"chapter/internal/live"
	"chapter/internal/models"
	"chapter/internal/raffle"
	"chapter/internal/registrations"
	"chapter/internal/services"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	service   *services.RaffleService
	store     registrations.Store
	hub       *live.Hub
	templates *template.Template
}

// NewHTTPHandler creates a new HTTPHandler. hub may be nil, in which case
// the live update route is not registered.
func NewHTTPHandler(service *services.RaffleService, store registrations.Store, hub *live.Hub, templates *template.Template) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		store:     store,
		hub:       hub,
		templates: templates,
	}
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	buf := new(bytes.Buffer)
	err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData)
	if err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	pageData["PageContent"] = template.HTML(buf.String())

	c.Header("Content-Type", "text/html; charset=utf-8")
	err = h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData)
	if err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.ShowIndex)
	router.GET("/events/:id/raffle", h.ShowRafflePage)
	router.GET("/health", h.Health)

	api := router.Group("/api/events/:id")
	api.DELETE("", h.ClearEvent)
	api.GET("/registrations", h.ListRegistrations)
	api.POST("/registrations", h.Register)
	api.POST("/registrations/csv", h.UploadRegistrationsCSV)

	api.GET("/draw", h.GetDraw)
	api.POST("/draw/open", h.OpenDraw)
	api.POST("/draw/start", h.StartDraw)
	api.POST("/draw/reset", h.ResetDraw)
	api.POST("/draw/close", h.CloseDraw)
	api.GET("/draw/results.csv", h.ExportResultsCSV)
	if h.hub != nil {
		api.GET("/draw/ws", h.WatchDraw)
	}
}

// ShowIndex handles the request for the home page.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	h.renderPage(c, gin.H{"title": "Home"}, "index.html")
}

// ShowRafflePage renders the draw dialog of an event.
func (h *HTTPHandler) ShowRafflePage(c *gin.Context) {
	eventID := c.Param("id")
	participants, err := h.store.List(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	data := gin.H{
		"title":        "Raffle",
		"EventID":      eventID,
		"Participants": participants,
		"Results":      h.service.GetDrawResults(eventID),
	}
	h.renderPage(c, data, "raffle.html")
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// ListRegistrations returns the people registered for an event.
func (h *HTTPHandler) ListRegistrations(c *gin.Context) {
	participants, err := h.store.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

type registerRequest struct {
	Name  string `json:"name" form:"name" binding:"required"`
	Email string `json:"email" form:"email"`
}

// Register adds one person to an event.
func (h *HTTPHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := registrations.Normalize(models.Participant{Name: req.Name, Email: req.Email})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.store.Register(c.Request.Context(), c.Param("id"), p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UploadRegistrationsCSV handles the CSV upload of registrations.
func (h *HTTPHandler) UploadRegistrationsCSV(c *gin.Context) {
	file, _, err := c.Request.FormFile("registrationsCSV")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving file: " + err.Error()})
		return
	}
	defer file.Close()

	added, err := registrations.ImportCSV(c.Request.Context(), h.store, c.Param("id"), file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "added": added})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// GetDraw returns the state of an event's draw dialog.
func (h *HTTPHandler) GetDraw(c *gin.Context) {
	h.respondDraw(c)(h.service.Snapshot(c.Param("id")))
}

// OpenDraw opens the draw dialog with the event's current registrations.
func (h *HTTPHandler) OpenDraw(c *gin.Context) {
	h.respondDraw(c)(h.service.OpenDraw(c.Request.Context(), c.Param("id")))
}

// StartDraw spins the event's draw.
func (h *HTTPHandler) StartDraw(c *gin.Context) {
	h.respondDraw(c)(h.service.StartDraw(c.Param("id")))
}

// ResetDraw clears the last winner so the event can spin again.
func (h *HTTPHandler) ResetDraw(c *gin.Context) {
	h.respondDraw(c)(h.service.ResetDraw(c.Param("id")))
}

// CloseDraw closes the event's draw dialog.
func (h *HTTPHandler) CloseDraw(c *gin.Context) {
	if err := h.service.CloseDraw(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearEvent drops an event's draw dialog, its draw history and its
// registrations.
func (h *HTTPHandler) ClearEvent(c *gin.Context) {
	eventID := c.Param("id")
	if err := h.store.Clear(c.Request.Context(), eventID); err != nil {
		writeError(c, err)
		return
	}
	h.service.ClearSession(eventID)
	c.Status(http.StatusNoContent)
}

// WatchDraw streams the event's draw updates over a websocket.
func (h *HTTPHandler) WatchDraw(c *gin.Context) {
	eventID := c.Param("id")
	ready := func() { h.service.Announce(eventID) }
	if err := h.hub.Serve(c.Writer, c.Request, eventID, ready); err != nil {
		logger.Warningf("Websocket upgrade for event %s failed: %v", eventID, err)
	}
}

func (h *HTTPHandler) respondDraw(c *gin.Context) func(raffle.Snapshot, error) {
	return func(snap raffle.Snapshot, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// ExportResultsCSV handles the request to download the draw results as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	eventID := c.Param("id")
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename="+eventID+"_raffle_results.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)

	if err := w.Write([]string{"Draw", "Drawn At", "Winner", "Email", "Participants"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	for _, result := range h.service.GetDrawResults(eventID) {
		row := []string{
			result.DrawID,
			result.DrawnAt.UTC().Format(time.RFC3339),
			result.WinnerName,
			result.WinnerEmail,
			strconv.Itoa(result.Participants),
		}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			c.String(http.StatusInternalServerError, "Error writing CSV")
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNoDraw), errors.Is(err, raffle.ErrClosed):
		status = http.StatusNotFound
	case errors.Is(err, raffle.ErrDrawInProgress), errors.Is(err, registrations.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, registrations.ErrInvalidParticipant):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
