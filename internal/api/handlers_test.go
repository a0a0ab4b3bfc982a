package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/store"
)

const testTree = `
image:
  question: "Does the image support the claim?"
  answers:
    "Yes": {label: supported}
    "No": {label: unsupported}
`

func testConfig() config.Config {
	return config.Config{
		TaskName:            "test_task",
		DatasetKey:          "data/dataset.csv",
		QuestionTreeKey:     "static/question_tree.yaml",
		ImagePrefix:         "static/images/",
		QualificationImages: "static/qualification_images/",
		ProgressPrefix:      "data/worker_progress/test_task/",
		DoneKey:             "data/done_test_task.txt",
		NonParticipantsKey:  "data/non_participants.txt",
		MaxPerWorker:        5,
		AnnotatorsPerItem:   3,
		MaxTreeDepth:        4,
		DoneCode:            "CODE-DONE",
		NoConsentCode:       "CODE-DECLINED",
	}
}

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Put(ctx, "data/dataset.csv", []byte(""+
		"item_id,text,image_name\n"+
		"A,claim about a storm,a.jpg\n"+
		"B,claim about a crowd,b.jpg\n")))
	require.NoError(t, s.Put(ctx, "static/question_tree.yaml", []byte(testTree)))
	require.NoError(t, s.Put(ctx, "static/images/a.jpg", []byte("jpeg-a")))
	require.NoError(t, s.Put(ctx, "static/images/b.jpg", []byte("jpeg-b")))
	require.NoError(t, s.Put(ctx, "static/qualification_images/q.png", []byte("png-q")))

	srv, err := NewServer(ctx, testConfig(), s)
	require.NoError(t, err)
	return srv, s
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestSessionValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	tests := []struct {
		name string
		body interface{}
		raw  string
		want int
	}{
		{name: "missing worker_id", body: SessionRequest{Consent: "yes"}, want: http.StatusBadRequest},
		{name: "blank worker_id", body: SessionRequest{WorkerID: "   ", Consent: "yes"}, want: http.StatusBadRequest},
		{name: "invalid json", raw: "{not json", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.raw != "" {
				req := httptest.NewRequest("POST", "/session", bytes.NewBufferString(tt.raw))
				w = httptest.NewRecorder()
				router.ServeHTTP(w, req)
			} else {
				w = doJSON(t, router, "POST", "/session", tt.body)
			}
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSessionDecline(t *testing.T) {
	srv, s := newTestServer(t)
	router := srv.SetupRoutes()

	w := doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "no"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decode(t, w, &resp)
	assert.Equal(t, "declined", resp.Status)
	assert.Equal(t, "CODE-DECLINED", resp.CompletionCode)
	assert.Empty(t, resp.SessionID)

	data, err := s.Get(context.Background(), "data/non_participants.txt")
	require.NoError(t, err)
	assert.Equal(t, "w1\n", string(data))

	// No batch was created for the decliner.
	ok, err := s.Exists(context.Background(), "data/worker_progress/test_task/progress_w1.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionAssignsBatch(t *testing.T) {
	srv, s := newTestServer(t)
	router := srv.SetupRoutes()

	w := doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "yes"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, Progress{Done: 0, Total: 2}, resp.Progress)

	ok, err := s.Exists(context.Background(), "data/worker_progress/test_task/progress_w1.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionAllSaturated(t *testing.T) {
	srv, s := newTestServer(t)
	router := srv.SetupRoutes()

	// Every item at the threshold before the worker arrives.
	require.NoError(t, s.Put(context.Background(), "data/done_test_task.txt",
		[]byte("A\nA\nA\nB\nB\nB\n")))

	w := doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "yes"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	decode(t, w, &resp)
	assert.Equal(t, "complete", resp.Status)
	assert.Equal(t, "CODE-DONE", resp.CompletionCode)
	assert.Empty(t, resp.SessionID)
}

func TestTaskScreen(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	var session SessionResponse
	decode(t, doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "yes"}), &session)

	w := doJSON(t, router, "GET", "/task/"+session.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var task TaskResponse
	decode(t, w, &task)
	assert.Equal(t, "ok", task.Status)
	assert.Contains(t, []string{"A", "B"}, task.ItemID)
	assert.NotEmpty(t, task.Text)
	assert.NotEmpty(t, task.ImageName)
	assert.Equal(t, 1, task.ItemNumber)
	require.NotNil(t, task.Question)
	assert.Equal(t, "image", task.Question.Branch)
	assert.Equal(t, []string{"No", "Yes"}, task.Question.Answers)
}

func TestTaskUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	w := doJSON(t, router, "GET", "/task/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnswerFlow(t *testing.T) {
	srv, s := newTestServer(t)
	router := srv.SetupRoutes()

	var session SessionResponse
	decode(t, doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "yes"}), &session)

	// Selection without confirm keeps the worker on the same question.
	w := doJSON(t, router, "POST", "/answer/"+session.SessionID,
		AnswerRequest{Answers: []string{"Yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	var step AnswerResponse
	decode(t, w, &step)
	assert.Equal(t, "awaiting_confirmation", step.State)
	assert.False(t, step.ItemDone)
	require.NotNil(t, step.Question)

	// Unknown answer is rejected.
	w = doJSON(t, router, "POST", "/answer/"+session.SessionID,
		AnswerRequest{Answers: []string{"Maybe"}, Confirm: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Confirming the terminal answer completes item one and opens item two.
	w = doJSON(t, router, "POST", "/answer/"+session.SessionID,
		AnswerRequest{Answers: []string{"Yes"}, Confirm: true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &step)
	assert.Equal(t, "item_complete", step.State)
	assert.True(t, step.ItemDone)
	assert.False(t, step.BatchDone)
	require.NotEmpty(t, step.NextSessionID)
	assert.Equal(t, Progress{Done: 1, Total: 2}, step.Progress)

	// The first session is gone.
	w = doJSON(t, router, "POST", "/answer/"+session.SessionID,
		AnswerRequest{Answers: []string{"Yes"}, Confirm: true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Completing item two finishes the batch.
	w = doJSON(t, router, "POST", "/answer/"+step.NextSessionID,
		AnswerRequest{Answers: []string{"No"}, Confirm: true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &step)
	assert.True(t, step.BatchDone)
	assert.Equal(t, "CODE-DONE", step.CompletionCode)
	assert.Equal(t, Progress{Done: 2, Total: 2}, step.Progress)

	// Both completions reached the ledger.
	data, err := s.Get(context.Background(), "data/done_test_task.txt")
	require.NoError(t, err)
	assert.Len(t, bytes.Fields(data), 2)
}

func TestImageHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantType string
		wantBody string
	}{
		{"dataset image", "/image/a.jpg", http.StatusOK, "image/jpeg", "jpeg-a"},
		{"qualification fallback", "/image/q.png", http.StatusOK, "image/png", "png-q"},
		{"unknown image", "/image/nope.jpg", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "GET", tt.path, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, w.Header().Get("Content-Type"))
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestProgressHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	w := doJSON(t, router, "GET", "/progress/w1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no batch yet")

	doJSON(t, router, "POST", "/session", SessionRequest{WorkerID: "w1", Consent: "yes"})

	w = doJSON(t, router, "GET", "/progress/w1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p Progress
	decode(t, w, &p)
	assert.Equal(t, Progress{Done: 0, Total: 2}, p)
}

func TestStatsHandler(t *testing.T) {
	srv, s := newTestServer(t)
	router := srv.SetupRoutes()

	require.NoError(t, s.Put(context.Background(), "data/done_test_task.txt",
		[]byte("A\nA\nA\nB\n")))

	w := doJSON(t, router, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	decode(t, w, &resp)
	assert.Equal(t, 3, resp.Threshold)
	assert.Equal(t, map[string]int{"A": 3, "B": 1}, resp.Counts)
	assert.Equal(t, []string{"A"}, resp.Saturated)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.SetupRoutes()

	w := doJSON(t, router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
