package newsletter

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/mailer"
)

// Handlers provides the HTTP surface: the admin API plus the public
// confirmation page.
type Handlers struct {
	manager *Manager
	logger  *log.Logger
}

// NewHandlers creates newsletter handlers
func NewHandlers(manager *Manager, logger *log.Logger) *Handlers {
	return &Handlers{manager: manager, logger: logger}
}

// RegisterAdminRoutes mounts the admin API onto the given router.
func (h *Handlers) RegisterAdminRoutes(r chi.Router) {
	r.Route("/newsletter", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleRegister)
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/import", h.HandleImport)
		r.Post("/bulk-register", h.HandleBulkRegister)
		r.Get("/settings", h.HandleGetSettings)
		r.Post("/settings", h.HandleSaveSettings)
		r.Get("/export.csv", h.HandleExport)
		r.Post("/{id}/send-confirmation", h.HandleSendConfirmation)
		r.Post("/{id}/authorize", h.HandleAuthorize)
		r.Post("/{id}/cancel", h.HandleCancel)
		r.Delete("/{id}", h.HandleDelete)
		r.Delete("/", h.HandleDeleteByEmail)
	})
}

// RegisterPublicRoutes mounts the confirmation link endpoint.
func (h *Handlers) RegisterPublicRoutes(r chi.Router, verificationPath string) {
	r.Get("/"+verificationPath+"/{token}", h.HandleConfirm)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain failures onto HTTP statuses with
// user-facing messages; unexpected errors stay generic and get logged.
func (h *Handlers) respondDomainError(w http.ResponseWriter, err error, fallback string) {
	var ve *ValidationError
	var de *mailer.DeliveryError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAmbiguous):
		respondError(w, http.StatusNotFound, "contact does not exist")
	case errors.As(err, &de):
		h.logger.Printf("[newsletter] %v", err)
		respondError(w, http.StatusBadGateway, "could not send e-mail")
	default:
		h.logger.Printf("[newsletter] %s: %v", fallback, err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func parseID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// contactRow is the admin list row shape.
type contactRow struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Source         *string   `json:"source"`
	Authorized     string    `json:"authorized"`
	IsActive       bool      `json:"isActive"`
	AuthorizedDate *string   `json:"authorizedDate"`
	InsertedDate   string    `json:"insertedDate"`
}

// HandleList returns one filtered page of contacts with the filter options
// the admin UI needs.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 32
	}

	filter := Filter{
		EmailContains: q.Get("email"),
		Source:        q.Get("source"),
		AuthState:     q.Get("authorized"),
	}

	contacts, total, err := h.manager.List(r.Context(), filter, page, limit)
	if err != nil {
		h.respondDomainError(w, err, "failed to list contacts")
		return
	}

	sources, hasNoSource, err := h.manager.SourceOptions(r.Context())
	if err != nil {
		h.respondDomainError(w, err, "failed to list sources")
		return
	}
	sourceOptions := make([]string, 0, len(sources)+1)
	if hasNoSource {
		sourceOptions = append(sourceOptions, SourceNone)
	}
	sourceOptions = append(sourceOptions, sources...)

	rows := make([]contactRow, 0, len(contacts))
	for _, c := range contacts {
		var authorizedDate *string
		if c.AuthorizedAt != nil {
			d := c.AuthorizedAt.Format("2006-01-02")
			authorizedDate = &d
		}
		rows = append(rows, contactRow{
			ID:             c.ID,
			Email:          c.Email,
			Source:         c.Source,
			Authorized:     c.AuthState(),
			IsActive:       c.IsActive(),
			AuthorizedDate: authorizedDate,
			InsertedDate:   c.InsertedAt.Format("2006-01-02"),
		})
	}

	pageCount := (total + limit - 1) / limit
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"list":          rows,
		"sourceTypes":   sourceOptions,
		"authStates":    []string{AuthStateAuthorized, AuthStateDisabled, AuthStateCanceled},
		"paginator": map[string]int{
			"page":         page,
			"itemsPerPage": limit,
			"itemCount":    total,
			"pageCount":    pageCount,
		},
	})
}

// HandleRegister registers one address with double opt-in.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string  `json:"email"`
		Source *string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ip := ClientIP(r)
	if err := h.manager.Register(r.Context(), req.Email, req.Source, &ip); err != nil {
		h.respondDomainError(w, err, fmt.Sprintf("can not add contact %q", req.Email))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleAnalyze previews a free-text paste: which extracted addresses are
// already contacts. Mutates nothing.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Haystack string `json:"haystack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	emails, err := h.manager.Analyze(r.Context(), req.Haystack)
	if err != nil {
		h.respondDomainError(w, err, "failed to analyze contacts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"emails": emails})
}

// HandleImport bulk-creates unauthorized contacts for unknown addresses.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
		Source *string  `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.manager.Import(r.Context(), req.Emails, req.Source)
	if err != nil {
		h.respondDomainError(w, err, "failed to import contacts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "result": result})
}

// HandleBulkRegister bulk-creates pre-authorized contacts from trusted lists.
func (h *Handlers) HandleBulkRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
		Source *string  `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.manager.BulkRegister(r.Context(), req.Emails, req.Source)
	if err != nil {
		h.respondDomainError(w, err, "failed to import contacts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "result": result})
}

// HandleSendConfirmation re-sends the verification e-mail for a contact.
func (h *Handlers) HandleSendConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid contact ID")
		return
	}

	contact, err := h.manager.GetByID(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err, "failed to load contact")
		return
	}
	if err := h.manager.SendVerification(r.Context(), contact, nil); err != nil {
		h.respondDomainError(w, err, "can not send e-mail")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": fmt.Sprintf("e-mail was sent to %q", contact.Email),
	})
}

// HandleAuthorize flips the authorized flag from the admin console.
func (h *Handlers) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid contact ID")
		return
	}

	var req struct {
		Authorized bool `json:"authorized"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.SetAuthorized(r.Context(), id, req.Authorized); err != nil {
		h.respondDomainError(w, err, "can not authorize this contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleCancel marks a contact as opted out.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid contact ID")
		return
	}

	var req struct {
		Reason *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.CancelByID(r.Context(), id, req.Reason); err != nil {
		h.respondDomainError(w, err, "can not cancel this contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleDelete physically removes a contact.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid contact ID")
		return
	}

	if err := h.manager.DeleteByID(r.Context(), id); err != nil {
		h.respondDomainError(w, err, "can not delete this contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleDeleteByEmail removes the contact for an address, for GDPR-style
// erasure requests where only the address is known.
func (h *Handlers) HandleDeleteByEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.DeleteByEmail(r.Context(), req.Email); err != nil {
		h.respondDomainError(w, err, "can not delete this contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleGetSettings returns the retention policy.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Settings(r.Context())
	if err != nil {
		h.respondDomainError(w, err, "failed to load settings")
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// HandleSaveSettings validates and stores the retention policy.
func (h *Handlers) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var s RetentionSettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.manager.SaveSettings(r.Context(), s); err != nil {
		h.respondDomainError(w, err, "failed to save settings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleExport streams every contact as a semicolon-delimited download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.manager.Export(r.Context())
	if err != nil {
		h.respondDomainError(w, err, "failed to export contacts")
		return
	}

	filename := fmt.Sprintf("newsletter-%s.csv", h.manager.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

var confirmPage = template.Must(template.New("confirm").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Newsletter subscription</title></head>
<body style="font-family: sans-serif; max-width: 560px; margin: 48px auto;">
{{if .OK}}
  <h1>Subscription confirmed</h1>
  <p>Thank you, your e-mail address has been verified. You are now subscribed.</p>
{{else}}
  <h1>Confirmation failed</h1>
  <p>This confirmation link is not valid. It may have been mistyped or the
  subscription request may have expired.</p>
{{end}}
</body>
</html>`))

// HandleConfirm consumes a verification link. The visitor always gets a
// human-readable page, never structured data or a raw error; failures are
// logged server-side.
func (h *Handlers) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ip := ClientIP(r)

	ok := true
	if err := h.manager.AuthorizeByToken(r.Context(), token, &ip); err != nil {
		ok = false
		h.logger.Printf("[newsletter] confirmation with token %q failed: %v", token, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
	confirmPage.Execute(w, struct{ OK bool }{OK: ok})
}
