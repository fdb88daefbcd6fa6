package task

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"cybertodo/internal/model"
)

const maxImportBytes = 8 << 20

// Handler exposes one Store over JSON. It serializes every call into the
// store, so a single process can serve several browser tabs.
type Handler struct {
	mu    sync.Mutex
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the task routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/tasks", h.TasksRoot)
	mux.HandleFunc("/api/tasks/", h.TasksSub)
	mux.HandleFunc("/api/view", h.ViewState)
	mux.HandleFunc("/api/stats", h.Stats)
	mux.HandleFunc("/api/export", h.Export)
	mux.HandleFunc("/api/import", h.Import)
	mux.HandleFunc("/api/reset", h.Reset)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// writeResult maps a store error onto the response. Persistence failures do
// not fail the request: memory is already updated, so the caller gets the
// normal body plus an X-Persist-Error header. It reports whether the caller
// should go on writing the success body.
func writeResult(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPersist):
		w.Header().Set("X-Persist-Error", err.Error())
		return true
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrInvalidSnapshot):
		writeErr(w, http.StatusBadRequest, err.Error())
		return false
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
		return false
	}
}

func parseIDs(in []string) []model.TaskID {
	ids := make([]model.TaskID, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		ids = append(ids, model.TaskID(s))
	}
	return ids
}

// /api/tasks  (collection)
func (h *Handler) TasksRoot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		if q.Has("filter") {
			f, ok := model.ParseFilter(q.Get("filter"))
			if !ok {
				writeErr(w, http.StatusBadRequest, ErrUnknownFilter.Error())
				return
			}
			if !writeResult(w, h.store.SetFilter(f)) {
				return
			}
		}
		if q.Has("q") {
			h.store.SetSearchTerm(q.Get("q"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"view":  h.store.View(),
			"tasks": h.store.FilteredTasks(),
		})

	case http.MethodPost:
		var in struct {
			Text string `json:"text"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		t, err := h.store.AddTask(in.Text)
		if !writeResult(w, err) {
			return
		}
		writeJSON(w, http.StatusCreated, t)

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/tasks/{id}, /api/tasks/{id}/toggle, /api/tasks/{id}/edit and the
// collection actions under /api/tasks/.
func (h *Handler) TasksSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "/")
	if tail == "" {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	parts := strings.Split(tail, "/")

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(parts) == 1 {
		switch parts[0] {
		case "clear-completed":
			h.clearCompleted(w, r)
			return
		case "complete-all":
			h.completeAll(w, r)
			return
		case "reorder":
			h.reorder(w, r)
			return
		case "bulk":
			h.bulk(w, r)
			return
		}
		h.item(w, r, model.TaskID(parts[0]))
		return
	}

	if len(parts) == 2 {
		id := model.TaskID(parts[0])
		switch parts[1] {
		case "toggle":
			h.toggle(w, r, id)
			return
		case "edit":
			h.edit(w, r, id)
			return
		}
	}

	writeErr(w, http.StatusNotFound, "not found")
}

func (h *Handler) item(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	switch r.Method {
	case http.MethodGet:
		t, ok := h.store.Get(id)
		if !ok {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, t)

	case http.MethodPatch:
		var p struct {
			Text     *string `json:"text,omitempty"`
			Priority *string `json:"priority,omitempty"`
			Category *string `json:"category,omitempty"`
		}
		if err := decodeJSON(r, &p); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if _, ok := h.store.Get(id); !ok {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}

		// Validate everything before touching the store so a bad field
		// cannot leave a half-applied patch behind.
		var prio model.Priority
		if p.Priority != nil {
			var ok bool
			if prio, ok = model.ParsePriority(*p.Priority); !ok {
				writeErr(w, http.StatusBadRequest, ErrUnknownPriority.Error())
				return
			}
		}
		if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
			writeErr(w, http.StatusBadRequest, ErrEmptyText.Error())
			return
		}

		var persistErr error
		keep := func(err error) {
			if err != nil && persistErr == nil {
				persistErr = err
			}
		}
		if p.Text != nil {
			_, err := h.store.EditTask(id, *p.Text)
			keep(err)
		}
		if p.Priority != nil {
			_, err := h.store.SetPriority(id, prio)
			keep(err)
		}
		if p.Category != nil {
			_, err := h.store.SetCategory(id, *p.Category)
			keep(err)
		}
		if !writeResult(w, persistErr) {
			return
		}
		t, _ := h.store.Get(id)
		writeJSON(w, http.StatusOK, t)

	case http.MethodDelete:
		_, err := h.store.DeleteTask(id)
		if !writeResult(w, err) {
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ok, err := h.store.ToggleTask(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	if !writeResult(w, err) {
		return
	}
	t, _ := h.store.Get(id)
	writeJSON(w, http.StatusOK, t)
}

// /api/tasks/{id}/edit: PUT enters edit mode, DELETE leaves it.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	switch r.Method {
	case http.MethodPut:
		if !h.store.BeginEdit(id) {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
	case http.MethodDelete:
		if h.store.View().EditingID == id {
			h.store.CancelEdit()
		}
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.store.View())
}

func (h *Handler) clearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n, err := h.store.ClearCompleted()
	if !writeResult(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (h *Handler) completeAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	done, err := h.store.CompleteAll()
	if !writeResult(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"completed": done})
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var in struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if err := decodeJSON(r, &in); err != nil || in.From == nil || in.To == nil {
		writeErr(w, http.StatusBadRequest, `expected {"from":n,"to":n}`)
		return
	}
	if !writeResult(w, h.store.Reorder(*in.From, *in.To)) {
		return
	}
	writeJSON(w, http.StatusOK, h.store.Tasks())
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var in struct {
		Action   string   `json:"action"`
		IDs      []string `json:"ids"`
		Priority string   `json:"priority,omitempty"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}
	ids := parseIDs(in.IDs)

	var (
		n   int
		err error
	)
	switch strings.ToLower(strings.TrimSpace(in.Action)) {
	case "delete":
		n, err = h.store.BulkDelete(ids)
	case "complete":
		n, err = h.store.BulkComplete(ids)
	case "priority":
		p, ok := model.ParsePriority(in.Priority)
		if !ok {
			writeErr(w, http.StatusBadRequest, ErrUnknownPriority.Error())
			return
		}
		n, err = h.store.BulkSetPriority(ids, p)
	default:
		writeErr(w, http.StatusBadRequest, "unknown bulk action")
		return
	}
	if !writeResult(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affected": n})
}

// /api/view
func (h *Handler) ViewState(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.store.View())

	case http.MethodPut:
		var in struct {
			Filter *string `json:"filter,omitempty"`
			Search *string `json:"search,omitempty"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if in.Filter != nil {
			f, ok := model.ParseFilter(*in.Filter)
			if !ok {
				writeErr(w, http.StatusBadRequest, ErrUnknownFilter.Error())
				return
			}
			if !writeResult(w, h.store.SetFilter(f)) {
				return
			}
		}
		if in.Search != nil {
			h.store.SetSearchTerm(*in.Search)
		}
		writeJSON(w, http.StatusOK, h.store.View())

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.store.Statistics())
}

// /api/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	b, err := h.store.ExportSnapshotAs(format)
	h.mu.Unlock()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	ct := "application/json; charset=utf-8"
	if format == FormatYAML {
		ct = "application/yaml; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.`+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// /api/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "could not read body")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !writeResult(w, h.store.ImportSnapshotAs(b, format)) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": h.store.Len()})
}

// /api/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !writeResult(w, h.store.Reset()) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
