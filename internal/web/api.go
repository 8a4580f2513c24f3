package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hpungsan/lsearch/internal/errors"
	"github.com/hpungsan/lsearch/internal/ops"
)

// maxJSONBody bounds JSON request bodies outside of uploads.
const maxJSONBody = 1 << 20

// notebookRequest is the body of POST /api/notebooklm.
type notebookRequest struct {
	Action string `json:"action"`
	Query  string `json:"query"`
}

// HandleNotebookInfo handles GET /api/notebooklm.
func (h *Handlers) HandleNotebookInfo(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"notebookId": h.cfg.NotebookID,
	})
}

// HandleNotebookAction handles POST /api/notebooklm: sync, query or test.
func (h *Handlers) HandleNotebookAction(w http.ResponseWriter, r *http.Request) {
	var body notebookRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		renderAPIError(w, err)
		return
	}

	if h.syncer == nil {
		renderAPIError(w, errors.NewNotebookFailed(fmt.Errorf("notebook client not configured")))
		return
	}

	switch body.Action {
	case "sync":
		result := h.syncer.Sync(r.Context())
		if len(result.Errors) > ops.MaxDisplayErrors {
			result.Errors = result.Errors[:ops.MaxDisplayErrors]
		}
		renderJSON(w, http.StatusOK, result)

	case "query":
		answer, err := h.syncer.Query(r.Context(), body.Query)
		if err != nil {
			renderAPIError(w, err)
			return
		}
		result := answer.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  result,
		})

	case "test":
		result, err := h.syncer.Test(r.Context())
		if err != nil {
			renderAPIError(w, err)
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"rawText": result.RawText,
			"parsed":  result.Parsed,
			"count":   result.Count,
		})

	default:
		renderAPIError(w, errors.NewInvalidRequest("Use action: sync, query, or test"))
	}
}

// HandleUpload handles POST /api/upload. The document arrives as a
// multipart "file" part or a "content" field; "format" is an optional hint.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.UploadMaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	input, err := readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			renderAPIError(w, errors.NewPayloadTooLarge(limit))
			return
		}
		var lErr *errors.LsearchError
		if !stderrors.As(err, &lErr) {
			lErr = errors.NewInvalidRequest("invalid form data")
		}
		renderAPIError(w, lErr)
		return
	}

	result, err := ops.Upload(r.Context(), h.store, h.logger, input)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// readUpload pulls the document out of a multipart or urlencoded form.
func readUpload(r *http.Request) (ops.UploadInput, error) {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(32 << 10)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return ops.UploadInput{}, err
	}

	input := ops.UploadInput{
		Content: r.FormValue("content"),
		Format:  r.FormValue("format"),
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["file"]) == 0 {
		return input, nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return ops.UploadInput{}, errors.NewInvalidRequest("unreadable file part")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ops.UploadInput{}, err
	}
	// the file part wins over a content field sent alongside it
	input.Content = string(data)
	input.Filename = header.Filename
	return input, nil
}

// HandleSeedStatus handles GET /api/seed.
func (h *Handlers) HandleSeedStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ops.GetSeedStatus(r.Context(), h.store, h.catalog)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, status)
}

// HandleSeed handles POST /api/seed.
func (h *Handlers) HandleSeed(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Seed(r.Context(), h.store, h.catalog, h.logger)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSearchCommands handles GET /api/commands.
func (h *Handlers) HandleSearchCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.Search(r.Context(), h.store, ops.SearchInput{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Limit:    parseIntParam(r, "limit", 0),
	})
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGetCommand handles GET /api/commands/{name}.
func (h *Handlers) HandleGetCommand(w http.ResponseWriter, r *http.Request) {
	c, err := ops.Get(r.Context(), h.store, r.PathValue("name"))
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"command": c,
	})
}

// HandlePutCommand handles POST /api/commands, a single upsert.
func (h *Handlers) HandlePutCommand(w http.ResponseWriter, r *http.Request) {
	var input ops.PutInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		renderAPIError(w, err)
		return
	}

	c, err := ops.Put(r.Context(), h.store, input)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	h.logger.Info("command saved", "command", c.Command)
	renderJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"command": c,
	})
}

// HandleRepopulate handles PATCH /api/commands.
func (h *Handlers) HandleRepopulate(w http.ResponseWriter, r *http.Request) {
	result, err := ops.RepopulateExamples(r.Context(), h.store, h.catalog, h.logger)
	if err != nil {
		renderAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// decodeJSONBody reads a bounded JSON object into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewPayloadTooLarge(maxJSONBody)
		}
		return errors.NewInvalidRequest("invalid JSON body")
	}
	return nil
}
