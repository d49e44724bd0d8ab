package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/herbarium-review/internal/export"
	"github.com/sells-group/herbarium-review/internal/ledger"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/report"
	"github.com/sells-group/herbarium-review/internal/review"
	"github.com/sells-group/herbarium-review/internal/workflow"
)

func actorOf(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var p model.ExtractionPayload
	if err := decode(r, &p); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec, err := s.svc.Ingest(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) assess(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Assess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) allowedActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.svc.AllowedActions(r.Context(), chi.URLParam(r, "id"), actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if actions == nil {
		actions = []model.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

type correctionBody struct {
	Field           string `json:"field"`
	Value           string `json:"value"`
	Reason          string `json:"reason,omitempty"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (s *Server) applyCorrection(w http.ResponseWriter, r *http.Request) {
	var b correctionBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, entry, err := s.svc.ApplyCorrection(r.Context(), chi.URLParam(r, "id"), b.ExpectedVersion, ledger.Request{
		Field:  b.Field,
		Value:  b.Value,
		Actor:  actorOf(r),
		Reason: b.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec, "correction": entry})
}

type transitionBody struct {
	Action          model.Action `json:"action"`
	Entrant         string       `json:"entrant,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	ExpectedVersion int64        `json:"expected_version"`
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var b transitionBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, err := s.svc.Transition(r.Context(), review.TransitionRequest{
		SpecimenID:      chi.URLParam(r, "id"),
		ExpectedVersion: b.ExpectedVersion,
		Actor:           actorOf(r),
		Action:          b.Action,
		Params:          workflow.Params{Entrant: b.Entrant, Notes: b.Notes},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var b transitionBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, err := s.svc.AssignToEntrant(r.Context(), chi.URLParam(r, "id"), b.ExpectedVersion, b.Entrant, actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) reopen(w http.ResponseWriter, r *http.Request) {
	var b transitionBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, err := s.svc.Reopen(r.Context(), chi.URLParam(r, "id"), b.ExpectedVersion, actorOf(r), b.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type exportBody struct {
	export.Request
	ExpectedVersion int64 `json:"expected_version"`
}

func (s *Server) markExported(w http.ResponseWriter, r *http.Request) {
	var b exportBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, event, err := s.svc.MarkExported(r.Context(), chi.URLParam(r, "id"), b.ExpectedVersion, actorOf(r), b.Request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec, "event": event})
}

type flagBody struct {
	Reason          string `json:"reason,omitempty"`
	ExpectedVersion int64  `json:"expected_version"`
}

func (s *Server) flag(w http.ResponseWriter, r *http.Request) {
	var b flagBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !requireVersion(w, b.ExpectedVersion) {
		return
	}
	rec, err := s.svc.Flag(r.Context(), chi.URLParam(r, "id"), b.ExpectedVersion, actorOf(r), b.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) unflag(w http.ResponseWriter, r *http.Request) {
	expected, err := versionParam(r)
	if err != nil {
		badRequest(w, "invalid expected_version")
		return
	}
	if !requireVersion(w, expected) {
		return
	}
	rec, err := s.svc.Unflag(r.Context(), chi.URLParam(r, "id"), expected, actorOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) revalidate(w http.ResponseWriter, r *http.Request) {
	expected, err := versionParam(r)
	if err != nil {
		badRequest(w, "invalid expected_version")
		return
	}
	if !requireVersion(w, expected) {
		return
	}
	rec, err := s.svc.Revalidate(r.Context(), chi.URLParam(r, "id"), expected)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type syncBody struct {
	BaseVersion int64            `json:"base_version"`
	Edits       []ledger.Request `json:"edits"`
}

// sync stamps every edit with the header actor; offline clients cannot
// submit on someone else's behalf.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var b syncBody
	if err := decode(r, &b); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	actor := actorOf(r)
	for i := range b.Edits {
		b.Edits[i].Actor = actor
	}
	res, err := s.svc.Sync(r.Context(), review.SyncBatch{
		SpecimenID:  chi.URLParam(r, "id"),
		BaseVersion: b.BaseVersion,
		Edits:       b.Edits,
	})
	if err != nil {
		status := statusFor(err)
		writeJSON(w, status, map[string]any{"result": res, "error": errorBody{
			Error: err.Error(), Kind: model.KindOf(err), SpecimenID: res.SpecimenID,
		}})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	page, err := s.svc.Queue(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) queueReport(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	page, err := s.svc.Queue(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, page, stats); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="review-queue.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func versionParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("expected_version")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// requireVersion rejects writes that do not name the version the client
// last read. Blind updates are refused with 428.
func requireVersion(w http.ResponseWriter, expected int64) bool {
	if expected > 0 {
		return true
	}
	writeJSON(w, http.StatusPreconditionRequired, errorBody{Error: "expected_version is required"})
	return false
}
