package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/presentation"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
)

// page is the data every template renders.
type page struct {
	Title   string
	Notice  string
	Error   *presentation.ErrorDTO
	Records []presentation.RecordDTO
	Record  *presentation.RecordDTO
	Report  *presentation.ReportDTO
	Content string
	Action  string
	Diff    *presentation.DocumentDiff
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// handleList handles GET /
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.reg.ListAll(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	p := page{
		Title:   "Configurations",
		Records: presentation.FromDomainRecords(records),
	}
	if deleted := r.URL.Query().Get("deleted"); deleted != "" {
		p.Notice = fmt.Sprintf("Deleted configuration %s.", deleted)
	}
	if report, ok := s.LastReport(); ok {
		dto := presentation.FromReport(report)
		p.Report = &dto
	}
	s.render(w, http.StatusOK, "list.html", p)
}

// handleCheck handles GET /check
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	report, err := s.reg.Check(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.lastReport.Store(&report)

	dto := presentation.FromReport(report)
	s.render(w, http.StatusOK, "check.html", page{Title: "Consistency check", Report: &dto})
}

// handleNew handles GET /configs/new
func (s *Server) handleNew(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "form.html", page{Title: "New configuration", Action: "/configs"})
}

// handleCreate handles POST /configs
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	content, ok := s.formContent(w, r)
	if !ok {
		return
	}

	rec, err := s.reg.Create(r.Context(), []byte(content))
	if err != nil {
		s.renderFormError(w, r, err, page{Title: "New configuration", Action: "/configs", Content: content})
		return
	}

	log.Info(log.CatHTTP, "configuration created", "identifier", rec.Identifier, "name", rec.LogicalName)
	http.Redirect(w, r, "/configs/"+rec.Identifier.String(), http.StatusSeeOther)
}

// handleShow handles GET /configs/{id}
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identifier(w, r)
	if !ok {
		return
	}

	rec, err := s.reg.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	raw, err := schema.Render(rec.Document)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "form.html", s.editPage(rec, string(raw)))
}

// handleRaw handles GET /configs/{id}/raw
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identifier(w, r)
	if !ok {
		return
	}

	rec, err := s.reg.Get(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	raw, err := schema.Render(rec.Document)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename()))
	_, _ = w.Write(raw)
}

// handleUpdate handles POST /configs/{id}. action=preview renders a diff
// against the stored document without saving.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identifier(w, r)
	if !ok {
		return
	}
	content, ok := s.formContent(w, r)
	if !ok {
		return
	}

	if r.PostForm.Get("action") == "preview" {
		current, err := s.reg.Get(r.Context(), id)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		p := s.editPage(current, content)
		diff, err := previewDiff(current.Document, []byte(content))
		if err != nil {
			s.renderFormError(w, r, err, p)
			return
		}
		p.Diff = &diff
		if !diff.Changed() {
			p.Notice = "No changes."
		}
		s.render(w, http.StatusOK, "form.html", p)
		return
	}

	// Saving does not need a readable stored document, so a record with a
	// damaged file can be repaired from the form.
	rec, err := s.reg.Update(r.Context(), id, []byte(content))
	if err != nil {
		s.renderFormError(w, r, err, s.formPage(r, id, content))
		return
	}

	log.Info(log.CatHTTP, "configuration updated", "identifier", rec.Identifier, "name", rec.LogicalName)
	http.Redirect(w, r, "/configs/"+rec.Identifier.String(), http.StatusSeeOther)
}

// handleRename handles POST /configs/{id}/rename
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identifier(w, r)
	if !ok {
		return
	}
	if !s.parseForm(w, r) {
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))

	rec, err := s.reg.Rename(r.Context(), id, name)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			s.renderError(w, r, err)
			return
		}
		s.renderFormError(w, r, err, s.formPage(r, id, ""))
		return
	}

	log.Info(log.CatHTTP, "configuration renamed", "identifier", rec.Identifier, "name", rec.LogicalName)
	http.Redirect(w, r, "/configs/"+rec.Identifier.String(), http.StatusSeeOther)
}

// handleDelete handles POST /configs/{id}/delete
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identifier(w, r)
	if !ok {
		return
	}

	result, err := s.reg.Delete(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	for _, f := range result.Faults {
		log.Warn(log.CatHTTP, "delete reported fault", "fault", f.String())
	}

	http.Redirect(w, r, "/?deleted="+result.Record.Identifier.String(), http.StatusSeeOther)
}

func (s *Server) editPage(rec domain.Record, content string) page {
	dto := presentation.FromDomainRecord(rec)
	return page{
		Title:   fmt.Sprintf("%s · %s", rec.Identifier, rec.LogicalName),
		Record:  &dto,
		Action:  "/configs/" + rec.Identifier.String(),
		Content: content,
	}
}

// formPage rebuilds the edit page after a failed write. content, when empty,
// is filled from the stored document if it can still be read.
func (s *Server) formPage(r *http.Request, id domain.Identifier, content string) page {
	current, err := s.reg.Get(r.Context(), id)
	if err != nil {
		return page{Title: "Configuration " + id.String(), Action: "/configs/" + id.String(), Content: content}
	}
	if content == "" {
		if raw, err := schema.Render(current.Document); err == nil {
			content = string(raw)
		}
	}
	return s.editPage(current, content)
}

// previewDiff validates content and diffs it against current.
func previewDiff(current *schema.Document, content []byte) (presentation.DocumentDiff, error) {
	next, err := schema.Validate(content)
	if err != nil {
		return presentation.DocumentDiff{}, err
	}
	return presentation.CompareDocuments(current, next)
}

// identifier parses {id}; anything unparseable is a 404.
func (s *Server) identifier(w http.ResponseWriter, r *http.Request) (domain.Identifier, bool) {
	id, err := domain.ParseIdentifier(chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, r, &domain.NotFoundError{Name: chi.URLParam(r, "id")})
		return 0, false
	}
	return id, true
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, fmt.Sprintf("invalid form: %v", err), status)
		return false
	}
	return true
}

func (s *Server) formContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !s.parseForm(w, r) {
		return "", false
	}
	content := r.PostForm.Get("content")
	if strings.TrimSpace(content) == "" {
		s.renderFormError(w, r,
			&schema.ValidationError{FieldErrors: []schema.FieldError{{Message: "document is empty"}}},
			page{Title: "Configuration", Action: r.URL.Path})
		return "", false
	}
	return content, true
}

// renderFormError re-renders the form with the submitted content and the
// error's field problems.
func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, err error, p page) {
	dto := presentation.FromError(err)
	p.Error = &dto
	s.logError(r, err)
	s.render(w, HTTPStatusFromKind(domain.KindOf(err)), "form.html", p)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	dto := presentation.FromError(err)
	s.logError(r, err)
	s.render(w, HTTPStatusFromKind(domain.KindOf(err)), "error.html", page{Title: "Error", Error: &dto})
}

func (s *Server) logError(r *http.Request, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal || kind == domain.KindIOFailure {
		log.ErrorErr(log.CatHTTP, "request failed", err, "requestID", RequestID(r.Context()), "path", r.URL.Path)
		return
	}
	log.Debug(log.CatHTTP, "request rejected", "kind", kind, "error", err.Error(), "path", r.URL.Path)
}

// render executes a template into a buffer first so a template error never
// produces a half-written page.
func (s *Server) render(w http.ResponseWriter, status int, name string, p page) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		log.ErrorErr(log.CatHTTP, "template failed", err, "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
