package trigger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/api/middleware"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

type fakeDAGRepo struct {
	storage.DAGRepository
	byID    map[string]*models.DAG
	byToken map[string]*models.DAG
	byPath  map[string]*models.DAG
}

func (f *fakeDAGRepo) Get(ctx context.Context, id string) (*models.DAG, error) {
	if d, ok := f.byID[id]; ok {
		return d, nil
	}
	return nil, errTestNotFound
}

func (f *fakeDAGRepo) GetByTriggerToken(ctx context.Context, token string) (*models.DAG, error) {
	if d, ok := f.byToken[token]; ok {
		return d, nil
	}
	return nil, errTestNotFound
}

func (f *fakeDAGRepo) GetByTriggerPath(ctx context.Context, path string) (*models.DAG, error) {
	if d, ok := f.byPath[path]; ok {
		return d, nil
	}
	return nil, errTestNotFound
}

var errTestNotFound = &notFoundErr{}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "not found" }

type fakeRunCreator struct {
	err error
	run *models.Run
}

func (f *fakeRunCreator) CreateRun(ctx context.Context, dagID, triggeredBy string) (*models.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

func newTestRouter(dags *fakeDAGRepo, runs *fakeRunCreator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(dags, runs, nil, nil).Register(router)
	return router
}

func TestTriggerByToken_Success(t *testing.T) {
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{"tok-1": {ID: "dag-1", TriggerEnabled: true}}}
	runs := &fakeRunCreator{run: &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunQueued}}
	router := newTestRouter(dags, runs)

	req := httptest.NewRequest(http.MethodPost, "/trigger/tok-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestTriggerByToken_InvalidToken(t *testing.T) {
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{}}
	router := newTestRouter(dags, &fakeRunCreator{})

	req := httptest.NewRequest(http.MethodPost, "/trigger/bad-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestTriggerByToken_WrongMethod(t *testing.T) {
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{"tok-1": {ID: "dag-1", TriggerEnabled: true}}}
	router := newTestRouter(dags, &fakeRunCreator{})

	req := httptest.NewRequest(http.MethodGet, "/trigger/tok-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestTriggerByToken_DisabledTrigger(t *testing.T) {
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{"tok-1": {ID: "dag-1", TriggerEnabled: false}}}
	router := newTestRouter(dags, &fakeRunCreator{})

	req := httptest.NewRequest(http.MethodPost, "/trigger/tok-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestTriggerByToken_ValidationRejected(t *testing.T) {
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{"tok-1": {ID: "dag-1", TriggerEnabled: true}}}
	runs := &fakeRunCreator{err: errs.New(errs.KindValidation, "dag is not active", nil)}
	router := newTestRouter(dags, runs)

	req := httptest.NewRequest(http.MethodPost, "/trigger/tok-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestTriggerByPath_Success(t *testing.T) {
	dags := &fakeDAGRepo{byPath: map[string]*models.DAG{"/my/hook": {ID: "dag-2", TriggerEnabled: true}}}
	runs := &fakeRunCreator{run: &models.Run{ID: "run-2", DAGID: "dag-2", Status: models.RunQueued}}
	router := newTestRouter(dags, runs)

	req := httptest.NewRequest(http.MethodPost, "/trigger/path/my/hook", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestTriggerByPath_NotFound(t *testing.T) {
	dags := &fakeDAGRepo{byPath: map[string]*models.DAG{}}
	router := newTestRouter(dags, &fakeRunCreator{})

	req := httptest.NewRequest(http.MethodPost, "/trigger/path/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func testJWTConfig() *middleware.JWTConfig {
	return &middleware.JWTConfig{SecretKey: []byte("test-secret"), Expiration: time.Hour, RefreshWindow: time.Hour}
}

func TestTriggerByDAGID_RequiresBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	dags := &fakeDAGRepo{byID: map[string]*models.DAG{"dag-1": {ID: "dag-1", TriggerEnabled: true}}}
	New(dags, &fakeRunCreator{}, nil, testJWTConfig()).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/trigger/dag/dag-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a bearer token", w.Code)
	}
}

func TestTriggerByDAGID_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := testJWTConfig()
	dags := &fakeDAGRepo{byID: map[string]*models.DAG{"dag-1": {ID: "dag-1", TriggerEnabled: true}}}
	runs := &fakeRunCreator{run: &models.Run{ID: "run-3", DAGID: "dag-1", Status: models.RunQueued}}
	New(dags, runs, nil, cfg).Register(router)

	token, err := middleware.GenerateToken(cfg, "user-1", "ops", []string{"operator"})
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/trigger/dag/dag-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestTriggerByDAGID_DisabledWhenNoJWTConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	dags := &fakeDAGRepo{byID: map[string]*models.DAG{"dag-1": {ID: "dag-1", TriggerEnabled: true}}}
	New(dags, &fakeRunCreator{}, nil, nil).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/trigger/dag/dag-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when the JWT trigger variant is disabled", w.Code)
	}
}

func TestRegister_RateLimitsTriggerRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	dags := &fakeDAGRepo{byToken: map[string]*models.DAG{"tok-1": {ID: "dag-1", TriggerEnabled: true}}}
	runs := &fakeRunCreator{run: &models.Run{ID: "run-1", DAGID: "dag-1", Status: models.RunQueued}}
	rl := middleware.NewRateLimiter(1, 1)
	defer rl.Stop()
	New(dags, runs, rl, nil).Register(router)

	fire := func() int {
		req := httptest.NewRequest(http.MethodPost, "/trigger/tok-1", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := fire(); code != http.StatusAccepted {
		t.Fatalf("first request status = %d, want 202", code)
	}
	if code := fire(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429 once the burst is exhausted", code)
	}
}
