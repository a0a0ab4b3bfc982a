package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/assign"
	"crowdscope.io/annotate/internal/interview"
	"crowdscope.io/annotate/internal/metrics"
	"crowdscope.io/annotate/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SessionHandler captures consent and assigns (or reloads) the worker's batch.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode session request")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	req.WorkerID = strings.TrimSpace(req.WorkerID)
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("worker", req.WorkerID).
		Str("consent", req.Consent).
		Msg("Session endpoint called")

	if !strings.EqualFold(req.Consent, "yes") {
		if err := store.AppendLine(r.Context(), s.store, s.cfg.NonParticipantsKey, req.WorkerID); err != nil {
			log.Error().Err(err).Str("worker", req.WorkerID).Msg("Failed to record non-participation")
			writeError(w, http.StatusBadGateway, "Failed to record your choice")
			return
		}
		metrics.RecordDecline()
		writeJSON(w, http.StatusOK, SessionResponse{
			Status:         "declined",
			CompletionCode: s.cfg.NoConsentCode,
		})
		return
	}

	existed, err := s.store.Exists(r.Context(), s.engine.ProgressKey(req.WorkerID))
	if err != nil {
		log.Error().Err(err).Str("worker", req.WorkerID).Msg("Failed to check batch existence")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	batch, err := s.engine.Assign(r.Context(), req.WorkerID, s.catalog)
	if errors.Is(err, assign.ErrNoEligibleItems) {
		// Nothing left to annotate: terminal thank-you state, not an error.
		metrics.RecordAssignment("no_eligible_items")
		writeJSON(w, http.StatusOK, SessionResponse{
			Status:         "complete",
			CompletionCode: s.cfg.DoneCode,
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("worker", req.WorkerID).Msg("Failed to assign batch")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}
	if existed {
		metrics.RecordAssignment("reused")
	} else {
		metrics.RecordAssignment("created")
	}

	progress := Progress{Done: batch.DoneCount(), Total: batch.Len()}
	next, ok := batch.NextPending()
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{
			Status:         "complete",
			CompletionCode: s.cfg.DoneCode,
			Progress:       progress,
		})
		return
	}

	session := s.sessions.Start(s.tree, req.WorkerID, next.ItemID)
	writeJSON(w, http.StatusOK, SessionResponse{
		Status:    "ok",
		SessionID: session.ID,
		Progress:  progress,
	})
}

// TaskHandler renders the current annotation screen for a session.
func (s *Server) TaskHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(mux.Vars(r)["session_id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	item, ok := s.catalog.Get(session.ItemID)
	if !ok {
		log.Error().Str("item", session.ItemID).Msg("Session item missing from catalog")
		writeError(w, http.StatusInternalServerError, "Item not in catalog")
		return
	}

	batch, err := s.engine.Assign(r.Context(), session.WorkerID, s.catalog)
	if err != nil {
		log.Error().Err(err).Str("worker", session.WorkerID).Msg("Failed to load batch")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, TaskResponse{
		Status:     "ok",
		ItemID:     item.ID,
		Text:       item.Text,
		Context:    item.Context,
		ImageName:  item.ImageName,
		ItemNumber: batch.DoneCount() + 1,
		Progress:   Progress{Done: batch.DoneCount(), Total: batch.Len()},
		Question:   questionView(session.BranchName(), session.Current()),
	})
}

// AnswerHandler runs one state machine step; on item completion it records
// the submission and rolls the worker to the next pending item.
func (s *Server) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(mux.Vars(r)["session_id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode answer request")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	result, err := session.Step(interview.Input{
		Answers:     req.Answers,
		Explanation: req.Explanation,
		Confirm:     req.Confirm,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("worker", session.WorkerID).
			Str("item", session.ItemID).
			Msg("Rejected answer input")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Debug().
		Str("worker", session.WorkerID).
		Str("item", session.ItemID).
		Str("branch", result.Branch).
		Str("state", result.Outcome.String()).
		Msg("Interview step")

	if result.Outcome != interview.ItemComplete {
		batch, err := s.engine.Assign(r.Context(), session.WorkerID, s.catalog)
		if err != nil {
			log.Error().Err(err).Str("worker", session.WorkerID).Msg("Failed to load batch")
			writeError(w, http.StatusBadGateway, "Storage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, AnswerResponse{
			State:    result.Outcome.String(),
			Question: questionView(result.Branch, result.Node),
			Progress: Progress{Done: batch.DoneCount(), Total: batch.Len()},
		})
		return
	}

	s.submitAndAdvance(w, r, session, result)
}

// submitAndAdvance records the finished interview and opens the next item's
// session, or reports batch completion.
func (s *Server) submitAndAdvance(w http.ResponseWriter, r *http.Request, session *interview.Session, result interview.StepResult) {
	batch, err := s.engine.Assign(r.Context(), session.WorkerID, s.catalog)
	if err != nil {
		log.Error().Err(err).Str("worker", session.WorkerID).Msg("Failed to load batch for submission")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	if len(session.Answers) == 0 {
		// Confirm reached the adapter without any confirmed triples; the
		// recorder treats this as a silent no-op.
		metrics.RecordSubmission("empty")
	} else if err := s.recorder.Submit(r.Context(), batch, session.ItemID, session); err != nil {
		metrics.RecordSubmission("failed")
		log.Error().Err(err).
			Str("worker", session.WorkerID).
			Str("item", session.ItemID).
			Msg("Failed to record submission")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	} else {
		metrics.RecordSubmission("recorded")
	}

	s.sessions.Drop(session.ID)

	progress := Progress{Done: batch.DoneCount(), Total: batch.Len()}
	next, ok := batch.NextPending()
	if !ok {
		writeJSON(w, http.StatusOK, AnswerResponse{
			State:          result.Outcome.String(),
			ItemDone:       true,
			BatchDone:      true,
			CompletionCode: s.cfg.DoneCode,
			Progress:       progress,
		})
		return
	}

	nextSession := s.sessions.Start(s.tree, session.WorkerID, next.ItemID)
	writeJSON(w, http.StatusOK, AnswerResponse{
		State:         result.Outcome.String(),
		ItemDone:      true,
		NextSessionID: nextSession.ID,
		Progress:      progress,
	})
}

// ImageHandler serves an image blob out of the store.
func (s *Server) ImageHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	data, err := s.store.Get(r.Context(), s.cfg.ImagePrefix+name)
	if errors.Is(err, store.ErrNotFound) {
		data, err = s.store.Get(r.Context(), s.cfg.QualificationImages+name)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Unknown image")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("image", name).Msg("Failed to read image")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	contentType := "image/jpeg"
	if strings.HasSuffix(name, ".png") {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ProgressHandler reports a worker's done/total without touching sessions.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	workerID := mux.Vars(r)["worker_id"]

	data, err := s.store.Get(r.Context(), s.engine.ProgressKey(workerID))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No batch assigned")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("worker", workerID).Msg("Failed to read progress")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	batch, err := assign.DecodeBatch(data)
	if err != nil {
		log.Error().Err(err).Str("worker", workerID).Msg("Failed to decode progress")
		writeError(w, http.StatusInternalServerError, "Corrupt progress file")
		return
	}

	writeJSON(w, http.StatusOK, Progress{Done: batch.DoneCount(), Total: batch.Len()})
}

// StatsHandler exposes the completion ledger counts.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.ledger.Counts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}

	resp := StatsResponse{
		Threshold: s.ledger.Threshold(),
		Counts:    counts,
		Saturated: []string{},
	}
	for id, c := range counts {
		if c >= resp.Threshold {
			resp.Saturated = append(resp.Saturated, id)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler checks store reachability.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Exists(r.Context(), s.cfg.DoneKey); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func questionView(branch string, node *interview.Node) *QuestionView {
	if node == nil {
		return nil
	}
	return &QuestionView{
		Branch:          branch,
		Question:        node.Question,
		Explanation:     node.Explanation,
		Answers:         node.AnswerOrder,
		MultipleAnswers: node.MultipleAnswers,
		MandatoryText:   node.MandatoryText,
	}
}
