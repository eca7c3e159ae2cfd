package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/mailer"
)

// SuccessResponse acknowledges a sent email.
type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Success bool   `json:"success"`
}

// SendEmail mails the multipart contact form; files under "files" are attached.
func (h *HTTPHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Error parsing form")
		respondWithError(w, http.StatusBadRequest, "Error parsing form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	attachments, err := readAttachments(r.MultipartForm.File["files"])
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Error reading uploaded file")
		respondWithError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	req := mailer.ContactRequest{
		Name:       r.FormValue("name"),
		LastName:   r.FormValue("last_name"),
		City:       r.FormValue("city"),
		PostalCode: r.FormValue("postal_code"),
		Street:     r.FormValue("street"),
		Telephone:  r.FormValue("telephone"),
		Message:    r.FormValue("message"),
	}
	if err := h.mailer.SendContactRequest(r.Context(), req, attachments); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error sending email")
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func readAttachments(headers []*multipart.FileHeader) ([]mailer.Attachment, error) {
	attachments := make([]mailer.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", fh.Filename, err)
		}
		attachments = append(attachments, mailer.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return attachments, nil
}

// SendEmailFromCalculator mails a calculator order. Validation failures stop
// the request after the 400 is written.
func (h *HTTPHandler) SendEmailFromCalculator(w http.ResponseWriter, r *http.Request) {
	var order mailer.CalculatorOrder
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&order); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(order); err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := h.mailer.SendCalculatorOrder(r.Context(), order); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Error sending email")
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "Email sent successfully", Success: true})
}
