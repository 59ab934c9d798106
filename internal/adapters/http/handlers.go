package httpadapter

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

const (
	defaultListLimit = 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeError(w, r, err)
			return
		}
		rt.writeError(w, r, domain.WrapError(domain.ErrValidation, "read upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.services.Uploader.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	query := listQuery{Limit: defaultListLimit}
	var err error
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if query.Limit, err = strconv.Atoi(raw); err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrValidation, "parse limit", err))
			return
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if query.Offset, err = strconv.Atoi(raw); err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrValidation, "parse offset", err))
			return
		}
	}
	if err := validate.Struct(query); err != nil {
		rt.writeError(w, r, formatValidationErrors(err))
		return
	}

	docs, err := rt.services.Lifecycle.List(r.Context(), query.Limit, query.Offset)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out := listResponse{Documents: make([]documentResponse, 0, len(docs)), Limit: query.Limit, Offset: query.Offset}
	for i := range docs {
		out.Documents = append(out.Documents, toDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (rt *Router) beginPayment(w http.ResponseWriter, r *http.Request) {
	var req analysisOptionsRequest
	if err := decodeJSONBody(w, r, &req, true); err != nil {
		rt.writeError(w, r, err)
		return
	}
	session, err := rt.services.Lifecycle.BeginPayment(r.Context(), chi.URLParam(r, "id"), req.toDomain())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSONBody(w, r, &req, false); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, err := rt.services.Payments.ConfirmFromProvider(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.PaymentIntentID))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (rt *Router) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.services.Payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (rt *Router) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisOptionsRequest
	if err := decodeJSONBody(w, r, &req, true); err != nil {
		rt.writeError(w, r, err)
		return
	}
	documentID := chi.URLParam(r, "id")
	result, err := rt.services.Analysis.RequestAnalysis(r.Context(), documentID, req.toDomain())
	if err != nil {
		if domain.IsKind(err, domain.ErrAlreadyInProgress) {
			writeJSON(w, http.StatusAccepted, analysisResponse{DocumentID: documentID, Status: domain.StatusAnalyzing})
			return
		}
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{DocumentID: documentID, Status: domain.StatusAnalyzed, Result: result})
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Analysis.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Error:      doc.Error,
		Result:     doc.Result,
	})
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.services.Reports.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+reportFilename(doc)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := rt.services.Lifecycle.Original(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer body.Close()

	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadFilename(doc)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.logger.Warn("document_download_interrupted",
			"request_id", requestIDFromContext(r.Context()),
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func reportFilename(doc *domain.Document) string {
	base := headerSafe(strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename)))
	if strings.TrimSpace(base) == "" {
		base = doc.ID
	}
	return base + "-analysis.xlsx"
}

func downloadFilename(doc *domain.Document) string {
	name := headerSafe(filepath.Base(doc.Filename))
	if strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name))) == "" {
		return doc.ID + filepath.Ext(name)
	}
	return name
}

// headerSafe keeps a filename inside a quoted Content-Disposition value.
func headerSafe(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r > 0x7e {
			return '_'
		}
		return r
	}, name)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}
