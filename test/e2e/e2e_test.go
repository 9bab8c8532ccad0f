//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/repository"
	"github.com/stemsi/toeic-session/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	learnerID      = 900001
	learnerEmail   = "e2e_learner@example.com"
	adminID        = 900002
)

var (
	baseURL      string
	testID       int
	learnerToken string
	adminToken   string
	attemptID    string
	resultID     int
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if err := setup(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setup seeds a two-question reading test and mints tokens with the
// server's signing secret.
func setup() error {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `DELETE FROM attempt_results WHERE user_id = $1`, learnerID); err != nil {
		return fmt.Errorf("cleanup results: %w", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM draft_answers WHERE user_id = $1`, learnerID); err != nil {
		return fmt.Errorf("cleanup drafts: %w", err)
	}

	choices := []string{"A1", "B1", "C1", "D1"}
	q1 := repository.SeedQuestion{Question: model.Question{OrderNumber: 101, PartNumber: 5, Choices: choices}, CorrectAnswer: "A"}
	q2 := repository.SeedQuestion{Question: model.Question{OrderNumber: 102, PartNumber: 5, Choices: choices}, CorrectAnswer: "B"}
	items := []repository.SeedItem{
		{Item: model.NewPartItem(model.PartBlock{PartNumber: 5})},
		{Item: model.NewQuestionItem(q1.Question), Questions: []repository.SeedQuestion{q1}},
		{Item: model.NewQuestionItem(q2.Question), Questions: []repository.SeedQuestion{q2}},
	}
	test := &model.Test{Title: fmt.Sprintf("E2E %d", time.Now().Unix()), DurationMinutes: 10}
	testID, err = repository.NewTestRepository(pool).CreateWithItems(ctx, test, items)
	if err != nil {
		return fmt.Errorf("seed test: %w", err)
	}

	auth := service.NewAuthService(cfg, nil)
	if learnerToken, err = auth.GenerateLearnerToken(learnerID, learnerEmail); err != nil {
		return err
	}
	adminToken, err = auth.GenerateAdminToken(adminID, []string{service.PermissionTestsMonitor, service.PermissionTestsWrite})
	return err
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestE2EFlow(t *testing.T) {
	t.Run("RefreshCache", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/admin/tests/%d/refresh-cache", testID), nil, adminToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("LearnerCannotRefreshCache", func(t *testing.T) {
		resp, err := post(fmt.Sprintf("/admin/tests/%d/refresh-cache", testID), nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401/403, got %d", resp.StatusCode)
		}
	})

	t.Run("GetItems", func(t *testing.T) {
		resp, err := get(fmt.Sprintf("/tests/%d/items", testID), learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body envelope[model.TestPayload]
		decodeJSON(t, resp, &body)
		if len(body.Data.DisplayItems) != 3 {
			t.Fatalf("expected 3 display items, got %d", len(body.Data.DisplayItems))
		}
	})

	t.Run("StartAttempt", func(t *testing.T) {
		resp, err := post("/attempts", model.StartAttemptRequest{TestID: testID, Mode: model.AttemptModePractice}, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[service.AttemptView]
		decodeJSON(t, resp, &body)
		attemptID = body.Data.ID
		if attemptID == "" {
			t.Fatal("attempt id missing")
		}
	})

	t.Run("AnswerOverStream", func(t *testing.T) {
		conn := dialStream(t)
		defer conn.Close()

		readEvent(t, conn, "state")
		if err := conn.WriteJSON(map[string]any{"action": "select_answer", "data": map[string]any{"order": 101, "answer": "A"}}); err != nil {
			t.Fatalf("write: %v", err)
		}
		readEvent(t, conn, "answer_saved")
	})

	t.Run("Submit", func(t *testing.T) {
		resp, err := post("/attempts/"+attemptID+"/submit", nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[model.AttemptResult]
		decodeJSON(t, resp, &body)
		res := body.Data
		resultID = res.ID
		if res.ReadingCorrect != 1 || res.Skipped != 1 {
			t.Errorf("expected 1 correct and 1 skipped, got %d and %d", res.ReadingCorrect, res.Skipped)
		}
		if res.ListeningScore != service.MinSectionScore || res.ReadingScore != 225 || res.TotalScore != 230 {
			t.Errorf("unexpected scores %d/%d/%d", res.ListeningScore, res.ReadingScore, res.TotalScore)
		}
	})

	t.Run("DraftQueuedBeforeSubmitIsDropped", func(t *testing.T) {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, config.Load().DatabaseURL)
		if err != nil {
			t.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		drafts := repository.NewDraftRepository(pool)

		stale := model.DraftAnswer{
			UserID: learnerID, TestID: testID, OrderNumber: 102, Answer: "C",
			SavedAt: time.Now().Add(-time.Minute).UnixMilli(),
		}
		stored, err := drafts.Upsert(ctx, stale)
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if stored {
			t.Error("draft saved before the submission was stored")
		}

		left, err := drafts.ListByUserTest(ctx, learnerID, testID)
		if err != nil {
			t.Fatalf("list drafts: %v", err)
		}
		if len(left) != 0 {
			t.Errorf("expected no drafts after submit, got %v", left)
		}
	})

	t.Run("AbandonAfterSubmit", func(t *testing.T) {
		resp, err := do(http.MethodDelete, "/attempts/"+attemptID, nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("Results", func(t *testing.T) {
		resp, err := get(fmt.Sprintf("/results/%d", resultID), learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var body envelope[service.ResultDetail]
		decodeJSON(t, resp, &body)
		if len(body.Data.Answers) != 2 {
			t.Fatalf("expected 2 graded answers, got %d", len(body.Data.Answers))
		}

		list, err := get("/results?page=1&per_page=5", learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer list.Body.Close()
		var listed envelope[struct {
			Results []model.AttemptResult `json:"results"`
		}]
		decodeJSON(t, list, &listed)
		if len(listed.Data.Results) == 0 || listed.Data.Results[0].ID != resultID {
			t.Fatalf("latest result not listed first: %+v", listed.Data.Results)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		resp, err := post("/auth/logout", nil, learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout status %d", resp.StatusCode)
		}

		me, err := get("/auth/me", learnerToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer me.Body.Close()
		if me.StatusCode != http.StatusUnauthorized {
			t.Fatalf("revoked token accepted: %d", me.StatusCode)
		}
	})
}

// Helpers

func dialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(strings.Replace(baseURL, "/api/v1", "/ws/v1", 1))
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path += "/attempts/" + attemptID + "/stream"
	u.RawQuery = url.Values{"token": {learnerToken}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Event string `json:"event"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if msg.Event == event {
			return
		}
	}
}

func do(method, path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func post(path string, body interface{}, token string) (*http.Response, error) {
	return do(http.MethodPost, path, body, token)
}

func get(path string, token string) (*http.Response, error) {
	return do(http.MethodGet, path, nil, token)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
