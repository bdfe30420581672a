package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"VoiceMorph/cache"
	"VoiceMorph/config"
	"VoiceMorph/core/audio"
	"VoiceMorph/core/audio/audiotest"
	"VoiceMorph/core/auth"
	"VoiceMorph/core/effects"
	"VoiceMorph/model"
	"VoiceMorph/repository"
	"VoiceMorph/storage"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// memStore is an in-memory ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type testEnv struct {
	t       *testing.T
	cfg     *config.Config
	runner  *audiotest.Runner
	gdb     *gorm.DB
	store   *memStore
	handler http.Handler
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 10 << 20,
		FrontendURL:    "*",
		InputRetention: time.Hour,
	}
	runner := audiotest.NewRunner(2.5)
	catalog := effects.Default()

	env := &testEnv{t: t, cfg: cfg, runner: runner, gdb: gdb}
	deps := Dependencies{
		Config:          cfg,
		Catalog:         catalog,
		Processor:       audio.NewFFmpegProcessorWithRunner(catalog, "ffmpeg", "ffprobe", runner),
		Users:           repository.NewGormUserRepository(gdb),
		Recordings:      repository.NewGormRecordingRepository(gdb),
		Tokens:          auth.NewTokenService("test-secret", time.Hour, cache.NewMemoryRevocations()),
		LoginLimiter:    cache.NewMemoryLimiter(LoginRule),
		RegisterLimiter: cache.NewMemoryLimiter(RegisterRule),
	}
	if withStore {
		env.store = newMemStore()
		deps.Store = env.store
	}
	env.handler = NewRouter(NewAPIHandler(deps))
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	e.t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) register(name string) string {
	e.t.Helper()
	rec := e.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        name,
		"email":           name + "@example.com",
		"password":        "secret123",
		"confirmPassword": "secret123",
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(e.t, rec)["token"].(string)
}

type uploadPart struct {
	effect      string
	contentType string
	filename    string
	data        []byte
	fields      map[string]string
	noFile      bool
}

func (e *testEnv) transform(token string, p uploadPart) *httptest.ResponseRecorder {
	e.t.Helper()
	if p.contentType == "" {
		p.contentType = "audio/webm"
	}
	if p.filename == "" {
		p.filename = "clip.webm"
	}
	if p.data == nil {
		p.data = []byte("fake audio payload")
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if !p.noFile {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="audio"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(e.t, err)
		_, err = part.Write(p.data)
		require.NoError(e.t, err)
	}
	if p.effect != "" {
		require.NoError(e.t, mw.WriteField("effect", p.effect))
	}
	for k, v := range p.fields {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transform", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) uploadDirEntries() []string {
	e.t.Helper()
	entries, err := os.ReadDir(e.cfg.UploadDir)
	require.NoError(e.t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func (e *testEnv) countRecordings() int64 {
	var n int64
	require.NoError(e.t, e.gdb.Model(&model.Recording{}).Count(&n).Error)
	return n
}

var processedURL = regexp.MustCompile(`^/uploads/processed-\d+-audio-\d+-\d+\.wav$`)

func TestEffectsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.doJSON(http.MethodGet, "/api/effects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Len(t, body, effects.Default().Len())
	robot, ok := body["robot"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, robot["name"])
	assert.NotEmpty(t, robot["filters"])
}

func TestAuthenticatedTransformFlow(t *testing.T) {
	env := newTestEnv(t, false)
	env.register("alice")

	login := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	token := decode(t, login)["token"].(string)

	rec := env.transform(token, uploadPart{effect: "echo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Echo Effect", body["effect"])
	assert.Regexp(t, processedURL, body["downloadUrl"])
	assert.NotNil(t, body["recordingId"])
	info := body["audioInfo"].(map[string]interface{})
	assert.InDelta(t, 2.5, info["duration"], 0.001)

	// the processed file is reachable under /uploads
	get := env.do(httptest.NewRequest(http.MethodGet, body["downloadUrl"].(string), nil))
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, string(env.runner.OutputBytes), get.Body.String())

	list := env.doJSON(http.MethodGet, "/api/recordings", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	listBody := decode(t, list)
	recs := listBody["recordings"].([]interface{})
	require.Len(t, recs, 1)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, "Echo Effect Effect", first["title"])
	assert.Equal(t, "echo", first["effectType"])
	assert.EqualValues(t, 1, listBody["total"])

	trials := env.doJSON(http.MethodGet, "/api/trials", token, nil)
	require.Equal(t, http.StatusOK, trials.Code)
	assert.Contains(t, trials.Body.String(), `"trialCount":1`)
}

func TestAnonymousTransformCreatesNoRecording(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.transform("", uploadPart{effect: "robot"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Nil(t, body["recordingId"])
	assert.Regexp(t, processedURL, body["downloadUrl"])
	assert.Zero(t, env.countRecordings())
}

func TestTransformInvalidEffectStagesNothing(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.transform("", uploadPart{effect: "not_a_real_effect"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_EFFECT", decode(t, rec)["code"])
	assert.Empty(t, env.uploadDirEntries())
	assert.Empty(t, env.runner.Calls())
}

func TestTransformValidation(t *testing.T) {
	cases := []struct {
		name   string
		part   uploadPart
		max    int64
		status int
		code   string
	}{
		{"missing file", uploadPart{effect: "echo", noFile: true}, 0, http.StatusBadRequest, "NO_FILE"},
		{"missing effect", uploadPart{}, 0, http.StatusBadRequest, "INVALID_EFFECT"},
		{"wrong type", uploadPart{effect: "echo", contentType: "text/plain", filename: "notes.txt"}, 0, http.StatusBadRequest, "INVALID_FILE_TYPE"},
		{"too large", uploadPart{effect: "echo", data: bytes.Repeat([]byte("a"), 64)}, 16, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			if tc.max > 0 {
				env.cfg.MaxUploadBytes = tc.max
			}
			rec := env.transform("", tc.part)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode(t, rec)["code"])
			assert.Empty(t, env.uploadDirEntries())
		})
	}
}

func TestTransformNotMultipart(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.doJSON(http.MethodPost, "/api/transform", "", map[string]string{"effect": "echo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_FILE", decode(t, rec)["code"])
}

func TestTransformToolFailureCleansUp(t *testing.T) {
	env := newTestEnv(t, false)
	env.runner.FFmpegErr = audiotest.ErrBoom

	rec := env.transform("", uploadPart{effect: "echo"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PROCESSING_FAILED", body["code"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Audio processing failed: "))
	assert.Empty(t, env.uploadDirEntries())
}

func TestTransformProbeFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.runner.ProbeErr = audiotest.ErrBoom

	rec := env.transform("", uploadPart{effect: "echo"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, env.runner.CountCalls("ffmpeg"))
	assert.Empty(t, env.uploadDirEntries())
}

func TestDownloadAndWaveform(t *testing.T) {
	env := newTestEnv(t, false)
	env.runner.PCM = []float32{0.5, -0.5, 0.25, -0.25, 1, -1, 0, 0}

	rec := env.transform("", uploadPart{effect: "echo"})
	require.Equal(t, http.StatusOK, rec.Code)
	name := strings.TrimPrefix(decode(t, rec)["downloadUrl"].(string), "/uploads/")

	dl := env.do(httptest.NewRequest(http.MethodGet, "/api/download/"+name, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, dl.Header().Get("Content-Disposition"), name)

	mp3 := env.do(httptest.NewRequest(http.MethodGet, "/api/download/"+name+"?format=mp3", nil))
	require.Equal(t, http.StatusOK, mp3.Code)
	assert.Contains(t, mp3.Header().Get("Content-Disposition"), strings.TrimSuffix(name, ".wav")+".mp3")

	missing := env.do(httptest.NewRequest(http.MethodGet, "/api/download/nope.wav", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "FILE_NOT_FOUND", decode(t, missing)["code"])

	wf := env.do(httptest.NewRequest(http.MethodGet, "/api/waveform/"+name+"?buckets=4", nil))
	require.Equal(t, http.StatusOK, wf.Code, wf.Body.String())
	points := decode(t, wf)["points"].([]interface{})
	require.Len(t, points, 4)
	assert.InDelta(t, 1.0, points[2].(map[string]interface{})["peak"], 1e-6)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, false)
	cases := []struct {
		body map[string]string
		code string
	}{
		{map[string]string{"username": "bob"}, "MISSING_FIELDS"},
		{map[string]string{"username": "bob", "email": "bob@example.com", "password": "secret123", "confirmPassword": "other123"}, "PASSWORD_MISMATCH"},
		{map[string]string{"username": "bob", "email": "not-an-email", "password": "secret123", "confirmPassword": "secret123"}, "INVALID_EMAIL"},
		{map[string]string{"username": "b!", "email": "bob@example.com", "password": "secret123", "confirmPassword": "secret123"}, "INVALID_USERNAME"},
		{map[string]string{"username": "bob", "email": "bob@example.com", "password": "123", "confirmPassword": "123"}, "WEAK_PASSWORD"},
	}
	for _, tc := range cases {
		rec := env.doJSON(http.MethodPost, "/api/auth/register", "", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.code)
		assert.Equal(t, tc.code, decode(t, rec)["code"])
	}

	env.register("bob")
	dup := env.doJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob", "email": "other@example.com", "password": "secret123", "confirmPassword": "secret123",
	})
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "USER_EXISTS", decode(t, dup)["code"])
}

func TestLoginAndTokenGates(t *testing.T) {
	env := newTestEnv(t, false)
	env.register("carol")

	bad := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "carol", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, bad)["code"])

	missing := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "carol"})
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, "MISSING_CREDENTIALS", decode(t, missing)["code"])

	byName := env.doJSON(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "carol", "password": "secret123"})
	require.Equal(t, http.StatusOK, byName.Code)
	token := decode(t, byName)["token"].(string)

	noToken := env.doJSON(http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, noToken.Code)
	assert.Equal(t, "TOKEN_REQUIRED", decode(t, noToken)["code"])

	garbage := env.doJSON(http.MethodGet, "/api/auth/profile", "not.a.token", nil)
	assert.Equal(t, http.StatusForbidden, garbage.Code)
	assert.Equal(t, "INVALID_TOKEN", decode(t, garbage)["code"])

	profile := env.doJSON(http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, profile.Code)
	assert.Contains(t, profile.Body.String(), `"username":"carol"`)
	assert.NotContains(t, profile.Body.String(), "passwordHash")

	refresh := env.doJSON(http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, refresh.Code)
	assert.NotEmpty(t, decode(t, refresh)["token"])

	logout := env.doJSON(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, logout.Code)
	revoked := env.doJSON(http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, http.StatusForbidden, revoked.Code)
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, false)
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	for i := 0; i < LoginRule.Max; i++ {
		rec := env.doJSON(http.MethodPost, "/api/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.doJSON(http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, "Too many authentication attempts, please try again later", body["error"])

	// another client is unaffected
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"y"}`))
	req.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestPurchase(t *testing.T) {
	env := newTestEnv(t, false)
	token := env.register("dave")

	status := env.doJSON(http.MethodGet, "/api/purchase/status", token, nil)
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, false, decode(t, status)["hasPurchased"])

	invalid := env.doJSON(http.MethodPost, "/api/purchase", token, map[string]string{"planType": "lifetime"})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Equal(t, "INVALID_PLAN", decode(t, invalid)["code"])

	ok := env.doJSON(http.MethodPost, "/api/purchase", token, map[string]string{"planType": "yearly"})
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())

	status = env.doJSON(http.MethodGet, "/api/purchase/status", token, nil)
	body := decode(t, status)
	assert.Equal(t, true, body["hasPurchased"])
	assert.Equal(t, false, body["purchaseExpired"])
}

func TestShareAndPublicFeed(t *testing.T) {
	env := newTestEnv(t, false)
	owner := env.register("erin")
	other := env.register("frank")

	rec := env.transform(owner, uploadPart{effect: "chipmunk", fields: map[string]string{"title": "Mine <b>loud</b>"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := int64(decode(t, rec)["recordingId"].(float64))
	idPath := "/api/recordings/" + jsonNumber(id)

	denied := env.doJSON(http.MethodPost, idPath+"/share", other, nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, "ACCESS_DENIED", decode(t, denied)["code"])

	empty := decode(t, env.doJSON(http.MethodGet, "/api/public", "", nil))
	assert.Empty(t, empty["recordings"])

	share := env.doJSON(http.MethodPost, idPath+"/share", owner, nil)
	require.Equal(t, http.StatusOK, share.Code)
	shareBody := decode(t, share)
	shareToken := shareBody["shareToken"].(string)
	assert.Equal(t, "http://example.com/share/"+shareToken, shareBody["shareUrl"])

	again := decode(t, env.doJSON(http.MethodPost, idPath+"/share", owner, nil))
	assert.Equal(t, shareToken, again["shareToken"])

	shared := env.doJSON(http.MethodGet, "/api/share/"+shareToken, "", nil)
	require.Equal(t, http.StatusOK, shared.Code)
	recording := decode(t, shared)["recording"].(map[string]interface{})
	assert.Equal(t, "erin", recording["username"])
	assert.EqualValues(t, 1, recording["play_count"])
	assert.Regexp(t, processedURL, recording["audioUrl"])

	missing := env.doJSON(http.MethodGet, "/api/share/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	page := env.do(httptest.NewRequest(http.MethodGet, "/share/"+shareToken, nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, page.Body.String(), "Mine &lt;b&gt;loud&lt;/b&gt;")
	assert.NotContains(t, page.Body.String(), "<b>loud</b>")
	assert.Contains(t, page.Body.String(), "By: erin")

	feed := decode(t, env.doJSON(http.MethodGet, "/api/public", "", nil))
	items := feed["recordings"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "chipmunk", items[0].(map[string]interface{})["effect_type"])

	like := env.doJSON(http.MethodPost, idPath+"/like", other, nil)
	require.Equal(t, http.StatusOK, like.Code)
	assert.EqualValues(t, 1, decode(t, like)["likeCount"])
	like = env.doJSON(http.MethodPost, idPath+"/like", other, nil)
	assert.EqualValues(t, 1, decode(t, like)["likeCount"])
	unlike := env.doJSON(http.MethodDelete, idPath+"/like", other, nil)
	assert.EqualValues(t, 0, decode(t, unlike)["likeCount"])
}

func TestDeleteRecording(t *testing.T) {
	env := newTestEnv(t, true)
	owner := env.register("gina")
	other := env.register("hank")

	rec := env.transform(owner, uploadPart{effect: "echo"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	name := strings.TrimPrefix(body["downloadUrl"].(string), "/uploads/")
	idPath := "/api/recordings/" + jsonNumber(int64(body["recordingId"].(float64)))
	require.True(t, env.store.has(storage.RecordingKey(name)))

	denied := env.doJSON(http.MethodDelete, idPath, other, nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)

	ok := env.doJSON(http.MethodDelete, idPath, owner, nil)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Zero(t, env.countRecordings())
	assert.NoFileExists(t, filepath.Join(env.cfg.UploadDir, name))
	assert.False(t, env.store.has(storage.RecordingKey(name)))

	bad := env.doJSON(http.MethodDelete, "/api/recordings/abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestUploadsFallBackToArchive(t *testing.T) {
	env := newTestEnv(t, true)
	token := env.register("ivy")

	rec := env.transform(token, uploadPart{effect: "echo"})
	require.Equal(t, http.StatusOK, rec.Code)
	url := decode(t, rec)["downloadUrl"].(string)
	name := strings.TrimPrefix(url, "/uploads/")

	require.NoError(t, os.Remove(filepath.Join(env.cfg.UploadDir, name)))

	get := env.do(httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, string(env.runner.OutputBytes), get.Body.String())
	assert.Equal(t, "audio/wav", get.Header().Get("Content-Type"))

	missing := env.do(httptest.NewRequest(http.MethodGet, "/uploads/processed-0-missing.wav", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t, false)

	health := env.doJSON(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, health.Code)
	body := decode(t, health)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, effects.Default().Len(), body["effects"])

	req := httptest.NewRequest(http.MethodOptions, "/api/transform", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	pre := env.do(req)
	assert.Equal(t, http.StatusOK, pre.Code)
	assert.Equal(t, "*", pre.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, pre.Header().Get("X-Request-ID"))
}

func jsonNumber(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestUploadExtensionComesFromMIMEType(t *testing.T) {
	cases := []struct {
		contentType string
		filename    string
		ext         string
		ok          bool
	}{
		{"audio/webm", "clip.webm", ".webm", true},
		{"audio/webm;codecs=opus", "page.html", ".webm", true},
		{"audio/x-wav", "take.WAV", ".wav", true},
		{"audio/mpeg", "song", ".mp3", true},
		{"text/html", "page.html", "", false},
		{"", "clip.webm", "", false},
	}
	for _, tc := range cases {
		header := &multipart.FileHeader{Filename: tc.filename, Header: textproto.MIMEHeader{}}
		header.Header.Set("Content-Type", tc.contentType)
		ext, ok := uploadExtension(header)
		assert.Equal(t, tc.ok, ok, tc.contentType)
		assert.Equal(t, tc.ext, ext, tc.contentType)
	}
}

func TestTransformStagesWithAllowlistedExtension(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.transform("", uploadPart{effect: "echo", contentType: "audio/webm", filename: "page.html"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var staged []string
	for _, name := range env.uploadDirEntries() {
		assert.False(t, strings.HasSuffix(name, ".html"), name)
		if strings.HasPrefix(name, "audio-") {
			staged = append(staged, name)
		}
	}
	require.Len(t, staged, 1)
	assert.True(t, strings.HasSuffix(staged[0], ".webm"), staged[0])

	get := env.do(httptest.NewRequest(http.MethodGet, "/uploads/"+strings.TrimSuffix(staged[0], ".webm")+".html", nil))
	assert.Equal(t, http.StatusNotFound, get.Code)
}
