package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"socialprofiles/backend/internal/accounts"
	"socialprofiles/backend/internal/handler"
	"socialprofiles/backend/internal/hub"
	"socialprofiles/backend/internal/models"
	"socialprofiles/backend/internal/profiles"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "handler-test-secret"

type testServer struct {
	router *gin.Engine
	hub    *hub.Hub
}

type user struct {
	token   string
	profile handler.ProfileResponse
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Profile{}, &models.Relationship{}))

	log := zap.NewNop()
	ledger := profiles.NewLedger(db, log)
	directory := profiles.NewDirectory(db, ledger, log)
	events := hub.NewHub(log)
	svc := accounts.NewService(db, log).WithHashCost(bcrypt.MinCost)

	router := gin.New()
	handler.Routes{
		Auth:      handler.NewAuthHandler(svc, testSecret, time.Hour, log),
		Profiles:  handler.NewProfileHandler(directory, ledger, log),
		Relations: handler.NewRelationHandler(directory, ledger, events, log),
		JWTSecret: testSecret,
	}.Mount(router.Group("/api/v1"))

	return &testServer{router: router, hub: events}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username, first, last string) user {
	t.Helper()

	w := s.do(t, http.MethodPost, "/auth/register", "", handler.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "password123",
		FirstName: first,
		LastName:  last,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp handler.TokenResponse
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.Profile)
	return user{token: resp.Token, profile: *resp.Profile}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func ids(ps []handler.ProfileResponse) []uint {
	out := make([]uint, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	assert.Equal(t, "alice", alice.profile.Slug)
	assert.Equal(t, "Alice Smith", alice.profile.FullName)

	w := s.do(t, http.MethodPost, "/auth/register", "", handler.RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/auth/register", "", handler.RegisterInput{
		Username: "bob", Email: "not-an-email", Password: "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/register", "", handler.RegisterInput{
		Username: "   ", Email: "blank@example.com", Password: "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/auth/login", "", handler.LoginInput{Login: "alice@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login handler.TokenResponse
	decode(t, w, &login)
	assert.NotEmpty(t, login.Token)

	w = s.do(t, http.MethodPost, "/auth/login", "", handler.LoginInput{Login: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", handler.LoginInput{Login: "nobody", Password: "password123"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfiles_RequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/profiles", "/profiles/me", "/profiles/to-invite", "/profiles/me/friends", "/profiles/someone"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := s.do(t, http.MethodPost, "/relationships/1/invite", "invalid", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfiles_MeAndUpdate(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")

	w := s.do(t, http.MethodGet, "/profiles/me", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me handler.MeResponse
	decode(t, w, &me)
	assert.Equal(t, alice.profile.ID, me.Profile.ID)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, profiles.Counts{}, me.Counts)

	w = s.do(t, http.MethodPatch, "/profiles/me", alice.token, `{"bio":"climber","first_name":" Alicia "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated handler.ProfileResponse
	decode(t, w, &updated)
	assert.Equal(t, "Alicia", updated.FirstName)
	assert.Equal(t, "Smith", updated.LastName)
	assert.Equal(t, "climber", updated.Bio)

	w = s.do(t, http.MethodPatch, "/profiles/me", alice.token, `{"slug":"taken"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/profiles/me", alice.token, `{"avatar":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/profiles/me", alice.token, `{"avatar":"https://example.com/a.png"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &updated)
	assert.Equal(t, "https://example.com/a.png", updated.Avatar)

	w = s.do(t, http.MethodPatch, "/profiles/me", alice.token, `{"avatar":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &updated)
	assert.Empty(t, updated.Avatar)
}

func TestProfiles_ReservedSlugReachable(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	me := s.register(t, "me", "Mia", "Evans")
	require.NotEqual(t, "me", me.profile.Slug)

	w := s.do(t, http.MethodGet, "/profiles/"+me.profile.Slug, alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail handler.ProfileDetailResponse
	decode(t, w, &detail)
	assert.Equal(t, me.profile.ID, detail.Profile.ID)
}

func TestRelationships_Flow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	bob := s.register(t, "bob", "Bob", "Jones")
	carol := s.register(t, "carol", "Carol", "White")

	invite := fmt.Sprintf("/relationships/%d/invite", bob.profile.ID)
	w := s.do(t, http.MethodPost, invite, alice.token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rel handler.RelationshipResponse
	decode(t, w, &rel)
	assert.Equal(t, alice.profile.ID, rel.SenderID)
	assert.Equal(t, bob.profile.ID, rel.ReceiverID)
	assert.Equal(t, string(models.StatusSent), rel.Status)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, invite, alice.token, nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", alice.profile.ID), bob.token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", alice.profile.ID), alice.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/relationships/9999/invite", alice.token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/relationships/abc/invite", alice.token, nil).Code)

	var list handler.ProfileListResponse
	w = s.do(t, http.MethodGet, "/profiles/me/invites", bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Equal(t, []uint{alice.profile.ID}, ids(list.Data))

	w = s.do(t, http.MethodGet, "/profiles/me/invites/sent", alice.token, nil)
	decode(t, w, &list)
	assert.Equal(t, []uint{bob.profile.ID}, ids(list.Data))

	w = s.do(t, http.MethodGet, "/profiles/to-invite", alice.token, nil)
	decode(t, w, &list)
	assert.Equal(t, []uint{carol.profile.ID}, ids(list.Data))

	// Only the receiver can accept.
	accept := fmt.Sprintf("/relationships/%d/accept", alice.profile.ID)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, accept, carol.token, nil).Code)

	w = s.do(t, http.MethodPost, accept, bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &rel)
	assert.Equal(t, string(models.StatusAccepted), rel.Status)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, accept, bob.token, nil).Code)

	for _, u := range []struct {
		who    user
		friend uint
	}{{alice, bob.profile.ID}, {bob, alice.profile.ID}} {
		w = s.do(t, http.MethodGet, "/profiles/me/friends", u.who.token, nil)
		decode(t, w, &list)
		assert.Equal(t, []uint{u.friend}, ids(list.Data))
		assert.False(t, list.IsEmpty)
	}

	w = s.do(t, http.MethodGet, "/profiles/"+alice.profile.Slug, bob.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail handler.ProfileDetailResponse
	decode(t, w, &detail)
	assert.False(t, detail.IsSelf)
	assert.True(t, detail.Relation.Friends)
	assert.EqualValues(t, 1, detail.Counts.Friends)

	remove := fmt.Sprintf("/relationships/%d/remove", bob.profile.ID)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, remove, alice.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, remove, alice.token, nil).Code)

	w = s.do(t, http.MethodGet, "/profiles/me/friends", bob.token, nil)
	decode(t, w, &list)
	assert.Empty(t, list.Data)
	assert.True(t, list.IsEmpty)
}

func TestRelationships_AcceptTwicePublishesOnce(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	bob := s.register(t, "bob", "Bob", "Jones")

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", bob.profile.ID), alice.token, nil).Code)

	client := hub.NewClient()
	s.hub.Subscribe(alice.profile.ID, client)
	defer s.hub.Unsubscribe(alice.profile.ID, client)

	accept := fmt.Sprintf("/relationships/%d/accept", alice.profile.ID)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, accept, bob.token, nil).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, accept, bob.token, nil).Code)

	require.Len(t, client, 1)
	var event hub.Event
	require.NoError(t, json.Unmarshal(<-client, &event))
	assert.Equal(t, hub.EventInvitationAccepted, event.Type)
}

func TestRelationships_Reject(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	bob := s.register(t, "bob", "Bob", "Jones")

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", bob.profile.ID), alice.token, nil).Code)

	reject := fmt.Sprintf("/relationships/%d/reject", alice.profile.ID)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, reject, bob.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, reject, bob.token, nil).Code)

	// After a rejection either side may invite again.
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", alice.profile.ID), bob.token, nil).Code)
}

func TestProfiles_ListAndSearch(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	bob := s.register(t, "bob", "Bob", "Smithers")
	carol := s.register(t, "carol", "Carol", "White")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", bob.profile.ID), alice.token, nil).Code)

	w := s.do(t, http.MethodGet, "/profiles?limit=1", alice.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page handler.PaginatedProfileResponse
	decode(t, w, &page)
	assert.EqualValues(t, 2, page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, bob.profile.ID, page.Data[0].ID)
	require.NotNil(t, page.Data[0].Relation)
	assert.True(t, page.Data[0].Relation.Invited)

	w = s.do(t, http.MethodGet, "/profiles?limit=1&page=2", alice.token, nil)
	decode(t, w, &page)
	assert.Equal(t, []uint{carol.profile.ID}, ids(page.Data))
	assert.False(t, page.Data[0].Relation.Connected())

	var search handler.SearchResponse
	w = s.do(t, http.MethodGet, "/profiles/search", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &search)
	assert.False(t, search.Searched)
	assert.False(t, search.IsEmpty)

	w = s.do(t, http.MethodGet, "/profiles/search?q=zzz", "", nil)
	decode(t, w, &search)
	assert.True(t, search.Searched)
	assert.True(t, search.IsEmpty)
	assert.Empty(t, search.Data)

	w = s.do(t, http.MethodGet, "/profiles/search?q=SMITH", "", nil)
	decode(t, w, &search)
	assert.Equal(t, "SMITH", search.Lookup)
	assert.Equal(t, []uint{alice.profile.ID, bob.profile.ID}, ids(search.Data))
	assert.Nil(t, search.Data[0].Relation)

	w = s.do(t, http.MethodGet, "/profiles/search?q=bob", alice.token, nil)
	decode(t, w, &search)
	require.Len(t, search.Data, 1)
	require.NotNil(t, search.Data[0].Relation)
	assert.True(t, search.Data[0].Relation.Invited)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/profiles/nobody-here", alice.token, nil).Code)
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "Alice", "Smith")
	bob := s.register(t, "bob", "Bob", "Jones")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+bob.token)
	stream := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.router.ServeHTTP(stream, req)
	}()

	require.Eventually(t, func() bool { return s.hub.Subscribers(bob.profile.ID) == 1 }, time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/relationships/%d/invite", bob.profile.ID), alice.token, nil).Code)

	// Give the stream a moment to write the event before hanging up.
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, "text/event-stream", stream.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(stream.Body.String(), hub.EventInvitationReceived), stream.Body.String())
	assert.Equal(t, 0, s.hub.Subscribers(bob.profile.ID))
}
