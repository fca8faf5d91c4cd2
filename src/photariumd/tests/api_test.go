// Package tests provides integration tests for the photariumd server.
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/common/version"
	"github.com/photarium/photarium/src/photariumd/api"
	"github.com/photarium/photarium/src/photariumd/api/base"
	"github.com/photarium/photarium/src/photariumd/auth"
	"github.com/photarium/photarium/src/photariumd/db"
	"github.com/photarium/photarium/src/photariumd/security"
	"github.com/photarium/photarium/src/photariumd/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPI holds all the components needed for API testing
type testAPI struct {
	api         *api.API
	router      *gin.Engine
	database    *db.Database
	userManager *auth.UserManager
	authRepo    *auth.Repository
	jwtService  *auth.JWTService
	configRepo  *db.ProviderConfigRepository
	albumRepo   *db.AlbumRepository
	localPath   string
}

// setupTestAPI creates a test API instance with an in-memory database and a
// local provider rooted in a temp directory.
func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	database, err := db.New(db.Config{PersistPath: "", LoadOnStart: false})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	authRepo := auth.NewRepository(database)
	userManager := auth.NewUserManager(authRepo)
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(), authRepo, database)

	base.SetVersionInfo(&version.Info{
		Version:        "1.0.0-test",
		ReleaseName:    "Test",
		ReleaseVersion: "1.0.0",
		BuildDate:      "2026-01-01",
		GitCommit:      "abc1234",
	})

	logger := logs.New(logs.Config{
		Output: logs.OutputStdout,
		Level:  "error",
	})
	api.SetLogger(logger)
	storage.SetLogger(logger)

	secrets, err := security.NewSecretManager(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("failed to create secret manager: %v", err)
	}
	configRepo := db.NewProviderConfigRepository(database, secrets)

	localPath := t.TempDir()
	localCfg, _ := json.Marshal(storage.LocalConfig{BasePath: localPath})
	if err := configRepo.Upsert(&storage.Record{
		ProviderID: storage.Local,
		Enabled:    true,
		Config:     localCfg,
		UpdatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("failed to configure local provider: %v", err)
	}

	manager := storage.NewManager(configRepo, nil)
	albumRepo := db.NewAlbumRepository(database)

	apiInstance := api.New(api.Config{
		AlbumRepo:   albumRepo,
		PhotoRepo:   db.NewPhotoRepository(database),
		GroupRepo:   db.NewGroupRepository(database),
		ConfigRepo:  configRepo,
		Manager:     manager,
		UserManager: userManager,
		JWTService:  jwtService,
		RateLimit:   api.RateLimitConfig{Enabled: false},
	})

	router := gin.New()
	apiInstance.RegisterRoutes(router)

	t.Cleanup(func() {
		apiInstance.Stop()
		_ = database.Shutdown()
	})

	return &testAPI{
		api:         apiInstance,
		router:      router,
		database:    database,
		userManager: userManager,
		authRepo:    authRepo,
		jwtService:  jwtService,
		configRepo:  configRepo,
		albumRepo:   albumRepo,
		localPath:   localPath,
	}
}

// createUserToken creates a user and returns a JWT for it.
func (ta *testAPI) createUserToken(t *testing.T, name, role string, groups []string) string {
	t.Helper()

	user, err := ta.userManager.CreateUser(name, name+"@example.com", "password123", role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	if len(groups) > 0 {
		if err := ta.userManager.SetGroups(user.ID, groups); err != nil {
			t.Fatalf("failed to set groups: %v", err)
		}
		user, err = ta.authRepo.GetUserByID(user.ID)
		if err != nil {
			t.Fatal(err)
		}
	}

	token, err := ta.jwtService.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// request performs an HTTP request against the test router.
func (ta *testAPI) request(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

func (ta *testAPI) jsonRequest(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(payload)
	return ta.request(method, path, token, bytes.NewReader(data), "application/json")
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

// =============================================================================
// Base endpoints
// =============================================================================

func TestRootDiscovery(t *testing.T) {
	ta := setupTestAPI(t)

	w := ta.request(http.MethodGet, "/", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var info map[string]interface{}
	decodeJSON(t, w, &info)
	if info["name"] != "photariumd" {
		t.Errorf("unexpected API name: %v", info["name"])
	}
}

func TestHealthAndVersion(t *testing.T) {
	ta := setupTestAPI(t)

	w := ta.request(http.MethodGet, "/v1/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, "/v1/version", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("version: expected 200, got %d", w.Code)
	}
	var v map[string]interface{}
	decodeJSON(t, w, &v)
	if v["release_name"] != "Test" {
		t.Errorf("unexpected release name: %v", v["release_name"])
	}
}

// =============================================================================
// Auth
// =============================================================================

func TestLoginValidateLogout(t *testing.T) {
	ta := setupTestAPI(t)
	ta.createUserToken(t, "alice", "admin", nil)

	w := ta.jsonRequest(http.MethodPost, "/auth/login", "", map[string]string{
		"name":     "alice",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, w, &resp)
	if resp.AccessToken == "" {
		t.Fatal("login did not return a token")
	}

	w = ta.request(http.MethodGet, "/auth/validate", resp.AccessToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d", w.Code)
	}

	w = ta.request(http.MethodPost, "/auth/logout", resp.AccessToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Token is dead after logout
	w = ta.request(http.MethodGet, "/auth/validate", resp.AccessToken, nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("validate after logout: expected 401, got %d", w.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ta := setupTestAPI(t)
	ta.createUserToken(t, "bob", "guest", nil)

	w := ta.jsonRequest(http.MethodPost, "/auth/login", "", map[string]string{
		"name":     "bob",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUserCreateRequiresAdmin(t *testing.T) {
	ta := setupTestAPI(t)
	guestToken := ta.createUserToken(t, "carol", "guest", nil)
	adminToken := ta.createUserToken(t, "dave", "admin", nil)

	payload := map[string]string{
		"name":     "newbie",
		"email":    "newbie@example.com",
		"password": "password123",
	}

	w := ta.jsonRequest(http.MethodPost, "/auth/create", guestToken, payload)
	if w.Code != http.StatusForbidden {
		t.Fatalf("guest create: expected 403, got %d", w.Code)
	}

	w = ta.jsonRequest(http.MethodPost, "/auth/create", adminToken, payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

// =============================================================================
// Albums
// =============================================================================

func (ta *testAPI) createAlbum(t *testing.T, token string, payload map[string]interface{}) string {
	t.Helper()
	w := ta.jsonRequest(http.MethodPost, "/v1/albums", token, payload)
	if w.Code != http.StatusCreated {
		t.Fatalf("create album: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var album struct {
		ID string `json:"id"`
	}
	decodeJSON(t, w, &album)
	return album.ID
}

func TestAlbumTreeVisibility(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)
	familyToken := ta.createUserToken(t, "cousin", "guest", []string{"family"})

	ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Public Gallery", "isPublic": true,
	})
	ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Family Only", "allowedGroups": []string{"family"},
	})
	ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Private",
	})

	names := func(w *httptest.ResponseRecorder) []string {
		var nodes []struct {
			Name string `json:"name"`
		}
		decodeJSON(t, w, &nodes)
		out := make([]string, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.Name)
		}
		return out
	}

	// Anonymous sees only public albums
	w := ta.request(http.MethodGet, "/v1/albums/tree", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous tree: expected 200, got %d", w.Code)
	}
	got := names(w)
	if len(got) != 1 || got[0] != "Public Gallery" {
		t.Errorf("anonymous should see only the public album, got %v", got)
	}

	// Family member sees public plus the group-granted album
	w = ta.request(http.MethodGet, "/v1/albums/tree", familyToken, nil, "")
	got = names(w)
	if len(got) != 2 {
		t.Errorf("family member should see two albums, got %v", got)
	}

	// Admin sees everything
	w = ta.request(http.MethodGet, "/v1/albums/tree", adminToken, nil, "")
	got = names(w)
	if len(got) != 3 {
		t.Errorf("admin should see three albums, got %v", got)
	}
}

func TestHiddenAlbumReadsAsNotFound(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	id := ta.createAlbum(t, adminToken, map[string]interface{}{"name": "Hidden"})

	w := ta.request(http.MethodGet, "/v1/albums/"+id, "", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for hidden album, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, "/v1/albums/"+id, adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin read: expected 200, got %d", w.Code)
	}
}

func TestAlbumNestingAndRecursiveCount(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	rootID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Trips", "isPublic": true,
	})
	childID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Norway", "parentAlbumId": rootID, "isPublic": true,
	})

	// Two photos in the child, one in the root
	ta.uploadPhoto(t, adminToken, childID, "fjord1.jpg", "aaaa")
	ta.uploadPhoto(t, adminToken, childID, "fjord2.jpg", "bbbb")
	ta.uploadPhoto(t, adminToken, rootID, "cover.jpg", "cccc")

	w := ta.request(http.MethodGet, "/v1/albums/"+rootID+"/count", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("count: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var count struct {
		Count int `json:"count"`
	}
	decodeJSON(t, w, &count)
	if count.Count != 3 {
		t.Errorf("recursive count should be 3, got %d", count.Count)
	}

	w = ta.request(http.MethodGet, "/v1/albums/"+childID+"/count", adminToken, nil, "")
	decodeJSON(t, w, &count)
	if count.Count != 2 {
		t.Errorf("child count should be 2, got %d", count.Count)
	}
}

func TestAlbumCycleRejectedOverAPI(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	parentID := ta.createAlbum(t, adminToken, map[string]interface{}{"name": "Parent"})
	childID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Child", "parentAlbumId": parentID,
	})

	// Re-parenting the parent under its own child must fail
	w := ta.jsonRequest(http.MethodPut, "/v1/albums/"+parentID, adminToken, map[string]interface{}{
		"name": "Parent", "parentAlbumId": childID,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for cycle, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAlbumReorderReportsFailures(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	id := ta.createAlbum(t, adminToken, map[string]interface{}{"name": "Real"})

	w := ta.jsonRequest(http.MethodPost, "/v1/albums/reorder", adminToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"albumId": id, "sortOrder": 5},
			{"albumId": "ghost", "sortOrder": 1},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Applied  int `json:"applied"`
		Failures []struct {
			AlbumID string `json:"albumId"`
		} `json:"failures"`
	}
	decodeJSON(t, w, &resp)
	if resp.Applied != 1 {
		t.Errorf("expected 1 applied, got %d", resp.Applied)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].AlbumID != "ghost" {
		t.Errorf("expected ghost failure, got %+v", resp.Failures)
	}

	album, err := ta.albumRepo.GetByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if album.SortOrder != 5 {
		t.Errorf("valid entry should be applied, sort_order = %d", album.SortOrder)
	}
}

// =============================================================================
// Photos
// =============================================================================

func (ta *testAPI) uploadPhoto(t *testing.T, token, albumID, filename, content string) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("provider", "local")
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, content)
	mw.Close()

	w := ta.request(http.MethodPost, "/v1/albums/"+albumID+"/photos", token, &buf, mw.FormDataContentType())
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var photo struct {
		ID string `json:"id"`
	}
	decodeJSON(t, w, &photo)
	return photo.ID
}

func TestPhotoUploadServeDelete(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Snaps", "isPublic": true,
	})
	photoID := ta.uploadPhoto(t, adminToken, albumID, "sunset.jpg", "not really a jpeg")

	// Serving URL points at the local file route
	w := ta.request(http.MethodGet, "/v1/photos/"+photoID+"/url", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("url: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var urlResp struct {
		URL string `json:"url"`
	}
	decodeJSON(t, w, &urlResp)
	if !strings.HasPrefix(urlResp.URL, "/v1/files/local/") {
		t.Fatalf("unexpected serving URL: %s", urlResp.URL)
	}

	// The URL streams the stored content
	w = ta.request(http.MethodGet, urlResp.URL, "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("file: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "not really a jpeg" {
		t.Errorf("served content mismatch: %q", w.Body.String())
	}

	// Delete removes the record and the stored object
	w = ta.request(http.MethodDelete, "/v1/photos/"+photoID, adminToken, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, urlResp.URL, "", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("file after delete: expected 404, got %d", w.Code)
	}
}

func TestFileServingHonorsAlbumVisibility(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)
	familyToken := ta.createUserToken(t, "cousin", "guest", []string{"family"})
	strangerToken := ta.createUserToken(t, "stranger", "guest", nil)

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Reunion", "isPublic": false, "allowedGroups": []string{"family"},
	})
	photoID := ta.uploadPhoto(t, adminToken, albumID, "secret.jpg", "secret-bytes")

	w := ta.request(http.MethodGet, "/v1/photos/"+photoID+"/url", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("url: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var urlResp struct {
		URL string `json:"url"`
	}
	decodeJSON(t, w, &urlResp)

	// No identity, no bytes; denial reads as not-found
	w = ta.request(http.MethodGet, urlResp.URL, "", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("anonymous file fetch: expected 404, got %d: %s", w.Code, w.Body.String())
	}

	// A guest outside the granted group is equally blind
	w = ta.request(http.MethodGet, urlResp.URL, strangerToken, nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("ungranted file fetch: expected 404, got %d", w.Code)
	}

	// The granted group streams the content, including via the token
	// query parameter that plain <img> tags rely on
	w = ta.request(http.MethodGet, urlResp.URL, familyToken, nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "secret-bytes" {
		t.Fatalf("granted file fetch: got %d %q", w.Code, w.Body.String())
	}
	w = ta.request(http.MethodGet, urlResp.URL+"?token="+familyToken, "", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "secret-bytes" {
		t.Fatalf("query-token file fetch: got %d %q", w.Code, w.Body.String())
	}
}

func TestFileServingHidesUnpublishedFromGuests(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)
	guestToken := ta.createUserToken(t, "visitor", "guest", nil)

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Drafts", "isPublic": true,
	})
	photoID := ta.uploadPhoto(t, adminToken, albumID, "wip.jpg", "work in progress")

	w := ta.jsonRequest(http.MethodPut, "/v1/photos/"+photoID, adminToken,
		map[string]interface{}{"isPublished": false})
	if w.Code != http.StatusOK {
		t.Fatalf("unpublish: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ta.request(http.MethodGet, "/v1/photos/"+photoID+"/url", adminToken, nil, "")
	var urlResp struct {
		URL string `json:"url"`
	}
	decodeJSON(t, w, &urlResp)

	w = ta.request(http.MethodGet, urlResp.URL, guestToken, nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("draft fetch as guest: expected 404, got %d", w.Code)
	}
	w = ta.request(http.MethodGet, urlResp.URL, adminToken, nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "work in progress" {
		t.Fatalf("draft fetch as admin: got %d %q", w.Code, w.Body.String())
	}
}

func TestUploadDeniedForGuests(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)
	guestToken := ta.createUserToken(t, "guest", "guest", nil)

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Locked", "isPublic": true,
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("provider", "local")
	fw, _ := mw.CreateFormFile("file", "x.jpg")
	fmt.Fprint(fw, "data")
	mw.Close()

	w := ta.request(http.MethodPost, "/v1/albums/"+albumID+"/photos", guestToken, &buf, mw.FormDataContentType())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for guest upload, got %d", w.Code)
	}
}

func TestOwnerProviderAllowList(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	owner, err := ta.userManager.CreateUser("shooter", "shooter@example.com", "password123", "owner")
	if err != nil {
		t.Fatal(err)
	}
	// Owner may only upload to the cold store, which is not configured
	if err := ta.userManager.SetAllowedProviders(owner.ID, []string{"s3cold"}); err != nil {
		t.Fatal(err)
	}
	owner, err = ta.authRepo.GetUserByID(owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	ownerToken, err := ta.jwtService.GenerateToken(owner)
	if err != nil {
		t.Fatal(err)
	}

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{
		"name": "Restricted", "isPublic": true,
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("provider", "local")
	fw, _ := mw.CreateFormFile("file", "x.jpg")
	fmt.Fprint(fw, "data")
	mw.Close()

	w := ta.request(http.MethodPost, "/v1/albums/"+albumID+"/photos", ownerToken, &buf, mw.FormDataContentType())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disallowed provider, got %d: %s", w.Code, w.Body.String())
	}
}

// =============================================================================
// Files
// =============================================================================

func TestFileRouteRejectsTraversal(t *testing.T) {
	ta := setupTestAPI(t)

	w := ta.request(http.MethodGet, "/v1/files/local/..%2F..%2Fetc%2Fpasswd", "", nil, "")
	if w.Code != http.StatusForbidden && w.Code != http.StatusNotFound {
		t.Fatalf("expected traversal to be rejected, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "passwd") && w.Code == http.StatusOK {
		t.Fatal("traversal served file content")
	}
}

// =============================================================================
// Providers
// =============================================================================

func TestProviderEndpointsAdminOnly(t *testing.T) {
	ta := setupTestAPI(t)
	guestToken := ta.createUserToken(t, "guest", "guest", nil)

	w := ta.request(http.MethodGet, "/v1/providers", "", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous providers: expected 401, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, "/v1/providers", guestToken, nil, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("guest providers: expected 403, got %d", w.Code)
	}
}

func TestProviderStatusAndTest(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	w := ta.request(http.MethodGet, "/v1/providers", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("statuses: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var statuses []struct {
		Provider    string `json:"provider"`
		Enabled     bool   `json:"enabled"`
		Credentials string `json:"credentials"`
	}
	decodeJSON(t, w, &statuses)
	if len(statuses) != 1 || statuses[0].Provider != "local" || !statuses[0].Enabled {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}

	w = ta.request(http.MethodPost, "/v1/providers/local/test", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("test: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var test struct {
		Success bool `json:"success"`
	}
	decodeJSON(t, w, &test)
	if !test.Success {
		t.Errorf("local provider test should succeed: %s", w.Body.String())
	}
}

func TestProviderConfigRedactsSecrets(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	w := ta.jsonRequest(http.MethodPut, "/v1/providers/s3main", adminToken, map[string]interface{}{
		"enabled": true,
		"config": map[string]string{
			"accessKeyId":     "AKIAEXAMPLE",
			"secretAccessKey": "topsecret",
			"region":          "eu-west-1",
			"bucket":          "photos",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ta.request(http.MethodGet, "/v1/providers/s3main", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "topsecret") {
		t.Fatal("secret leaked in provider config response")
	}
	if !strings.Contains(w.Body.String(), "AKIAEXAMPLE") {
		t.Error("non-secret fields should survive redaction")
	}
}

func TestProviderDisableRefusesOperations(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	w := ta.request(http.MethodPut, "/v1/providers/local/enabled?enabled=false", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ta.request(http.MethodPost, "/v1/providers/local/test", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("test: expected 200, got %d", w.Code)
	}
	var test struct {
		Success bool `json:"success"`
	}
	decodeJSON(t, w, &test)
	if test.Success {
		t.Error("disabled provider test should fail")
	}
}

func TestProviderTreeEndpoint(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	albumID := ta.createAlbum(t, adminToken, map[string]interface{}{"name": "T", "isPublic": true})
	ta.uploadPhoto(t, adminToken, albumID, "a.jpg", "xx")

	w := ta.request(http.MethodGet, "/v1/providers/local/tree", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("tree: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var tree struct {
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	decodeJSON(t, w, &tree)
	if len(tree.Children) == 0 {
		t.Error("tree should list the uploaded album directory")
	}
}

// =============================================================================
// Groups
// =============================================================================

func TestGroupCRUD(t *testing.T) {
	ta := setupTestAPI(t)
	adminToken := ta.createUserToken(t, "admin", "admin", nil)

	w := ta.jsonRequest(http.MethodPost, "/v1/groups", adminToken, map[string]string{
		"alias": "family", "name": "Family",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Duplicate alias conflicts
	w = ta.jsonRequest(http.MethodPost, "/v1/groups", adminToken, map[string]string{
		"alias": "family", "name": "Family Again",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, "/v1/groups/family", adminToken, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	w = ta.request(http.MethodDelete, "/v1/groups/family", adminToken, nil, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}

	w = ta.request(http.MethodGet, "/v1/groups/family", adminToken, nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
}
