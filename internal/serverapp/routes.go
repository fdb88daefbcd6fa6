package serverapp

import (
	"net/http"
	"strings"
)

type RouteDoc struct {
	Method      string `json:"method"`
	Pattern     string `json:"pattern"`
	Summary     string `json:"summary,omitempty"`
	ExampleBody string `json:"example_body,omitempty"`
}

type RouteRegistry struct {
	routes []RouteDoc
}

func (rr *RouteRegistry) Add(methodAndPattern, summary, exampleBody string) {
	method, pattern, _ := strings.Cut(methodAndPattern, " ")
	rr.routes = append(rr.routes, RouteDoc{
		Method:      method,
		Pattern:     pattern,
		Summary:     summary,
		ExampleBody: exampleBody,
	})
}

func (rr *RouteRegistry) List() []RouteDoc {
	out := make([]RouteDoc, len(rr.routes))
	copy(out, rr.routes)
	return out
}

func (rr *RouteRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, rr.List())
}

func apiRoutes() *RouteRegistry {
	rr := &RouteRegistry{}
	rr.Add("GET /healthz", "liveness", "")
	rr.Add("GET /readyz", "storage readiness", "")
	rr.Add("GET /api/tasks", "filtered view; ?filter= and ?q= update the view first", "")
	rr.Add("POST /api/tasks", "add a task", `{"text":"buy milk"}`)
	rr.Add("GET /api/tasks/{id}", "one task", "")
	rr.Add("PATCH /api/tasks/{id}", "edit text, priority or category", `{"priority":"high","category":"work"}`)
	rr.Add("DELETE /api/tasks/{id}", "delete a task", "")
	rr.Add("POST /api/tasks/{id}/toggle", "flip completion", "")
	rr.Add("PUT /api/tasks/{id}/edit", "enter edit mode", "")
	rr.Add("DELETE /api/tasks/{id}/edit", "leave edit mode", "")
	rr.Add("POST /api/tasks/clear-completed", "remove completed tasks", "")
	rr.Add("POST /api/tasks/complete-all", "complete all, or reopen all when all are done", "")
	rr.Add("POST /api/tasks/reorder", "move a task", `{"from":0,"to":2}`)
	rr.Add("POST /api/tasks/bulk", "bulk delete, complete or set priority", `{"action":"priority","ids":["a","b"],"priority":"low"}`)
	rr.Add("GET /api/view", "view state", "")
	rr.Add("PUT /api/view", "set filter or search term", `{"filter":"active","search":"milk"}`)
	rr.Add("GET /api/stats", "counts by status, priority and category", "")
	rr.Add("GET /api/export", "snapshot; ?format=json|yaml", "")
	rr.Add("POST /api/import", "replace all tasks from a snapshot; ?format=json|yaml", `[{"id":"a","text":"x"}]`)
	rr.Add("POST /api/reset", "delete every task", "")
	rr.Add("GET /api/activity", "activity log; ?since=RFC3339&type=a,b", "")
	rr.Add("GET /api/config", "effective config", "")
	rr.Add("GET /api/routes", "this list", "")
	return rr
}
