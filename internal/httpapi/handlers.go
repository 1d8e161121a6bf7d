package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"waasp/internal/audit"
	"waasp/internal/contacts"
	"waasp/internal/store"
	"waasp/internal/whitelist"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Whitelist *whitelist.Service
	Audit     *audit.Service
	DB        *store.DB
	Version   string
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "version": h.Version})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": h.Version})
}

// --- Check ---

type checkRequest struct {
	SenderID       string  `json:"sender_id"`
	Channel        *string `json:"channel"`
	MessagePreview *string `json:"message_preview"`
}

// Check is called by message gateways before a message reaches the agent.
func (h Handlers) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.MessagePreview != nil && utf8.RuneCountInString(*req.MessagePreview) > whitelist.MaxPreviewLen {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message_preview exceeds 500 characters"})
		return
	}

	res, err := h.Whitelist.Check(c.Request.Context(), whitelist.CheckRequest{
		SenderID:       req.SenderID,
		Channel:        req.Channel,
		MessagePreview: req.MessagePreview,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// QuickCheck is the GET form of Check, for manual probing.
func (h Handlers) QuickCheck(c *gin.Context) {
	res, err := h.Whitelist.Check(c.Request.Context(), whitelist.CheckRequest{
		SenderID: c.Param("sender_id"),
		Channel:  optQuery(c, "channel"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Contacts ---

type createContactRequest struct {
	SenderID   string  `json:"sender_id"`
	TrustLevel *string `json:"trust_level"`
	Channel    *string `json:"channel"`
	Name       *string `json:"name"`
	Notes      *string `json:"notes"`
}

// updateContactRequest: absent or null fields are left alone; "" clears name/notes.
type updateContactRequest struct {
	TrustLevel *string `json:"trust_level"`
	Name       *string `json:"name"`
	Notes      *string `json:"notes"`
}

func (h Handlers) ListContacts(c *gin.Context) {
	var f whitelist.ListFilter
	if raw := c.Query("trust_level"); raw != "" {
		lvl, ok := strictTrust(c, raw)
		if !ok {
			return
		}
		f.TrustLevel = &lvl
	}
	f.Channel = optQuery(c, "channel")

	list, err := h.Whitelist.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list, "total": len(list)})
}

func (h Handlers) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lvl := contacts.TrustTrusted
	if req.TrustLevel != nil {
		var ok bool
		if lvl, ok = strictTrust(c, *req.TrustLevel); !ok {
			return
		}
	}

	ct, err := h.Whitelist.Add(c.Request.Context(), whitelist.AddRequest{
		SenderID:   req.SenderID,
		TrustLevel: lvl,
		Channel:    req.Channel,
		Name:       req.Name,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h Handlers) GetContact(c *gin.Context) {
	ct, err := h.Whitelist.Get(c.Request.Context(), c.Param("sender_id"), optQuery(c, "channel"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h Handlers) UpdateContact(c *gin.Context) {
	var req updateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	upd := whitelist.UpdateRequest{
		SenderID: c.Param("sender_id"),
		Channel:  optQuery(c, "channel"),
		Name:     req.Name,
		Notes:    req.Notes,
	}
	if req.TrustLevel != nil {
		lvl, ok := strictTrust(c, *req.TrustLevel)
		if !ok {
			return
		}
		upd.TrustLevel = &lvl
	}

	ct, err := h.Whitelist.Update(c.Request.Context(), upd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h Handlers) DeleteContact(c *gin.Context) {
	removed, err := h.Whitelist.Remove(c.Request.Context(), c.Param("sender_id"), optQuery(c, "channel"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "contact not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Audit ---

func (h Handlers) ListAudit(c *gin.Context) {
	f := audit.Filter{
		SenderID: c.Query("sender_id"),
		Channel:  c.Query("channel"),
	}
	if raw := c.Query("action"); raw != "" {
		a, err := audit.ParseAction(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
			return
		}
		f.Action = a
	}
	var ok bool
	if f.Limit, ok = intQuery(c, "limit", audit.DefaultLimit); !ok {
		return
	}
	if f.Offset, ok = intQuery(c, "offset", 0); !ok {
		return
	}
	f = f.Normalize()

	logs, err := h.Audit.Query(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs), "limit": f.Limit, "offset": f.Offset})
}

func (h Handlers) AuditStats(c *gin.Context) {
	st, err := h.Audit.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// --- helpers ---

func strictTrust(c *gin.Context, raw string) (contacts.TrustLevel, bool) {
	lvl, err := contacts.ValidateTrustLevel(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid trust_level, must be one of sovereign, trusted, limited, blocked"})
		return "", false
	}
	return lvl, true
}

func optQuery(c *gin.Context, key string) *string {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
