package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pulseblog/pulse/config"
	"github.com/pulseblog/pulse/models"
	"github.com/pulseblog/pulse/utils"
)

func setupTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	config.Override(config.AppConfig{
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		LogPath:            filepath.Join(t.TempDir(), "app.log"),
		JWTSecret:          "test-secret",
		UploadDir:          t.TempDir(),
		AdminUsernames:     []string{"admin"},
		ExcerptLength:      8,
		RateLimitPerMinute: 10000,
		// Point at a closed port so cache lookups degrade to misses.
		RedisHost: "127.0.0.1",
		RedisPort: 6399,
	})
	require.NoError(t, utils.InitLogger(config.Get()))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Post{},
		&models.Comment{}, &models.Follow{}, &models.PageView{},
	))

	return SetupRouter(db), db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{Username: username, Email: username + "@example.com", PasswordHash: hash}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return token
}

func createPost(t *testing.T, db *gorm.DB, author models.User, text string, createdAt time.Time, groupID *uint) models.Post {
	t.Helper()
	post := models.Post{Text: text, AuthorID: author.ID, GroupID: groupID, CreatedAt: createdAt}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func doRequest(r *gin.Engine, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doForm(r *gin.Engine, method, path, token string, values url.Values) *httptest.ResponseRecorder {
	return doRequest(r, method, path, token, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func doJSON(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	return doRequest(r, method, path, token, strings.NewReader(body), "application/json")
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func itemIDs(t *testing.T, env envelope) []uint {
	t.Helper()
	raw, ok := env.Data["items"].([]interface{})
	require.True(t, ok, "items missing in %v", env.Data)
	ids := make([]uint, 0, len(raw))
	for _, it := range raw {
		m := it.(map[string]interface{})
		ids = append(ids, uint(m["id"].(float64)))
	}
	return ids
}

func TestIndexNewestFirst(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p1 := createPost(t, db, alice, "first", base, nil)
	p2 := createPost(t, db, alice, "second", base.Add(time.Minute), nil)
	p3 := createPost(t, db, alice, "third", base.Add(2*time.Minute), nil)

	w := doRequest(r, http.MethodGet, "/", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, []uint{p3.ID, p2.ID, p1.ID}, itemIDs(t, env))

	meta := env.Data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, float64(1), meta["page"])
}

func TestIndexPagination(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		createPost(t, db, alice, fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute), nil)
	}

	w := doRequest(r, http.MethodGet, "/?page=2&page_size=5", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Len(t, itemIDs(t, env), 5)
	meta := env.Data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(12), meta["total"])
	assert.Equal(t, float64(3), meta["total_pages"])
}

func TestIndexUsesConfiguredExcerptLength(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	createPost(t, db, alice, "a very long post body", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), nil)

	w := doRequest(r, http.MethodGet, "/", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	items := env.Data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "a very l", item["excerpt"])
	assert.Equal(t, "a very long post body", item["text"])
}

func TestGroupPosts(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	group := models.Group{Title: "Travel", Slug: "travel", Description: "trips"}
	require.NoError(t, db.Create(&group).Error)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inGroup := createPost(t, db, alice, "in group", base, &group.ID)
	createPost(t, db, alice, "no group", base.Add(time.Minute), nil)

	w := doRequest(r, http.MethodGet, "/group/travel", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, []uint{inGroup.ID}, itemIDs(t, env))
	g := env.Data["group"].(map[string]interface{})
	assert.Equal(t, "Travel", g["title"])
}

func TestGroupPostsUnknownSlug(t *testing.T) {
	r, _ := setupTest(t)
	w := doRequest(r, http.MethodGet, "/group/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostDetail(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	post := createPost(t, db, alice, "hello world", base, nil)

	c1 := models.Comment{PostID: post.ID, AuthorID: bob.ID, Text: "older", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.Create(&c1).Error)
	c2 := models.Comment{PostID: post.ID, AuthorID: alice.ID, Text: "newer", CreatedAt: base.Add(2 * time.Minute)}
	require.NoError(t, db.Create(&c2).Error)

	w := doRequest(r, http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	p := env.Data["post"].(map[string]interface{})
	assert.Equal(t, "hello world", p["text"])
	comments := p["comments"].([]interface{})
	require.Len(t, comments, 2)
	assert.Equal(t, "newer", comments[0].(map[string]interface{})["text"])
	assert.Equal(t, "older", comments[1].(map[string]interface{})["text"])
}

func TestPostDetailNotFound(t *testing.T) {
	r, _ := setupTest(t)
	w := doRequest(r, http.MethodGet, "/posts/99999999", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, 40401, env.Code)
}

func TestLoginRequiredRedirects(t *testing.T) {
	r, _ := setupTest(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/create"},
		{http.MethodPost, "/create"},
		{http.MethodGet, "/follow"},
		{http.MethodGet, "/posts/1/edit"},
		{http.MethodPost, "/posts/1/comment"},
		{http.MethodPost, "/profile/alice/follow"},
		{http.MethodPost, "/profile/alice/unfollow"},
	}
	for _, tc := range paths {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := doRequest(r, tc.method, tc.path, "", nil, "")
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "/auth/login?next="+url.QueryEscape(tc.path), w.Header().Get("Location"))
		})
	}
}

func TestPostCreate(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	token := tokenFor(t, alice)

	group := models.Group{Title: "Tech", Slug: "tech"}
	require.NoError(t, db.Create(&group).Error)

	w := doForm(r, http.MethodPost, "/create", token, url.Values{
		"text":  {"my first post"},
		"group": {"tech"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/alice", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, db.Where("text = ?", "my first post").First(&post).Error)
	assert.Equal(t, alice.ID, post.AuthorID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, group.ID, *post.GroupID)
	assert.False(t, post.CreatedAt.IsZero())
}

func TestPostCreateWithImage(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	token := tokenFor(t, alice)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("text", "post with image"))
	fw, err := mw.CreateFormFile("image", "pic.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := doRequest(r, http.MethodPost, "/create", token, body, mw.FormDataContentType())
	require.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	require.NoError(t, db.Where("text = ?", "post with image").First(&post).Error)
	assert.True(t, strings.HasPrefix(post.Image, "/static/uploads/"), "image url: %s", post.Image)
	assert.True(t, strings.HasSuffix(post.Image, ".png"))

	// the stored URL must resolve through the static mount
	w = doRequest(r, http.MethodGet, post.Image, "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostCreateRejectsUnsupportedImage(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	token := tokenFor(t, alice)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("text", "body"))
	fw, err := mw.CreateFormFile("image", "payload.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := doRequest(r, http.MethodPost, "/create", token, body, mw.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	fields := env.Data["errors"].(map[string]interface{})
	assert.Contains(t, fields, "image")

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPostCreateValidation(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	token := tokenFor(t, alice)

	t.Run("empty text", func(t *testing.T) {
		w := doForm(r, http.MethodPost, "/create", token, url.Values{"text": {"   "}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		fields := env.Data["errors"].(map[string]interface{})
		assert.Contains(t, fields, "text")
	})

	t.Run("unknown group", func(t *testing.T) {
		w := doForm(r, http.MethodPost, "/create", token, url.Values{
			"text":  {"body"},
			"group": {"missing"},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		fields := env.Data["errors"].(map[string]interface{})
		assert.Contains(t, fields, "group")
	})

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestPostEditOnlyByAuthor(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	post := createPost(t, db, alice, "original text", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), nil)
	detailPath := fmt.Sprintf("/posts/%d", post.ID)

	t.Run("non-author is silently redirected", func(t *testing.T) {
		w := doForm(r, http.MethodPost, detailPath+"/edit", tokenFor(t, bob), url.Values{"text": {"hijacked"}})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detailPath, w.Header().Get("Location"))

		var unchanged models.Post
		require.NoError(t, db.First(&unchanged, post.ID).Error)
		assert.Equal(t, "original text", unchanged.Text)
	})

	t.Run("non-author edit form is redirected too", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, detailPath+"/edit", tokenFor(t, bob), nil, "")
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detailPath, w.Header().Get("Location"))
	})

	t.Run("author updates in place", func(t *testing.T) {
		w := doForm(r, http.MethodPost, detailPath+"/edit", tokenFor(t, alice), url.Values{"text": {"updated text"}})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detailPath, w.Header().Get("Location"))

		var updated models.Post
		require.NoError(t, db.First(&updated, post.ID).Error)
		assert.Equal(t, "updated text", updated.Text)
		assert.Equal(t, alice.ID, updated.AuthorID)
		assert.True(t, updated.CreatedAt.Equal(post.CreatedAt))
	})
}

func TestPostEditUnknownPost(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	w := doForm(r, http.MethodPost, "/posts/99999999/edit", tokenFor(t, alice), url.Values{"text": {"x"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddComment(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, alice, "post body", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), nil)
	detailPath := fmt.Sprintf("/posts/%d", post.ID)

	t.Run("valid comment is created and redirects", func(t *testing.T) {
		w := doForm(r, http.MethodPost, detailPath+"/comment", tokenFor(t, bob), url.Values{"text": {"nice post"}})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detailPath, w.Header().Get("Location"))

		var comment models.Comment
		require.NoError(t, db.Where("post_id = ?", post.ID).First(&comment).Error)
		assert.Equal(t, bob.ID, comment.AuthorID)
		assert.Equal(t, "nice post", comment.Text)
	})

	t.Run("empty comment is dropped but still redirects", func(t *testing.T) {
		w := doForm(r, http.MethodPost, detailPath+"/comment", tokenFor(t, bob), url.Values{"text": {"   "}})
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, detailPath, w.Header().Get("Location"))

		var count int64
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown post", func(t *testing.T) {
		w := doForm(r, http.MethodPost, "/posts/99999999/comment", tokenFor(t, bob), url.Values{"text": {"hi"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFollowLifecycle(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	token := tokenFor(t, alice)

	countEdges := func() int64 {
		var n int64
		require.NoError(t, db.Model(&models.Follow{}).
			Where("user_id = ? AND author_id = ?", alice.ID, bob.ID).Count(&n).Error)
		return n
	}

	// follow -> unfollow -> follow leaves exactly one edge
	w := doRequest(r, http.MethodPost, "/profile/bob/follow", token, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/bob", w.Header().Get("Location"))
	assert.Equal(t, int64(1), countEdges())

	w = doRequest(r, http.MethodPost, "/profile/bob/unfollow", token, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(0), countEdges())

	w = doRequest(r, http.MethodPost, "/profile/bob/follow", token, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), countEdges())

	// repeat follows stay deduplicated
	w = doRequest(r, http.MethodPost, "/profile/bob/follow", token, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), countEdges())

	// unfollowing twice is a no-op
	doRequest(r, http.MethodPost, "/profile/bob/unfollow", token, nil, "")
	w = doRequest(r, http.MethodPost, "/profile/bob/unfollow", token, nil, "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(0), countEdges())
}

func TestSelfFollowIsIgnored(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")

	w := doRequest(r, http.MethodPost, "/profile/alice/follow", tokenFor(t, alice), nil, "")
	require.Equal(t, http.StatusFound, w.Code)

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestFollowUnknownUser(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	token := tokenFor(t, alice)

	w := doRequest(r, http.MethodPost, "/profile/ghost/follow", token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodPost, "/profile/ghost/unfollow", token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFollowIndex(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b1 := createPost(t, db, bob, "bob one", base, nil)
	b2 := createPost(t, db, bob, "bob two", base.Add(time.Minute), nil)
	createPost(t, db, carol, "carol post", base.Add(2*time.Minute), nil)

	require.NoError(t, db.Create(&models.Follow{UserID: alice.ID, AuthorID: bob.ID}).Error)

	w := doRequest(r, http.MethodGet, "/follow", tokenFor(t, alice), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, []uint{b2.ID, b1.ID}, itemIDs(t, env))
}

func TestProfileFollowingFlag(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	require.NoError(t, db.Create(&models.Follow{UserID: alice.ID, AuthorID: bob.ID}).Error)

	t.Run("anonymous viewer", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/profile/bob", "", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, false, env.Data["following"])
	})

	t.Run("following viewer", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/profile/bob", tokenFor(t, alice), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, true, env.Data["following"])
	})

	t.Run("owner viewing own profile", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/profile/bob", tokenFor(t, bob), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, false, env.Data["following"])
	})

	t.Run("unknown profile", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/profile/ghost", "", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGroupDeleteClearsPostReferences(t *testing.T) {
	r, db := setupTest(t)
	admin := createUser(t, db, "admin")
	alice := createUser(t, db, "alice")

	group := models.Group{Title: "Travel", Slug: "travel"}
	require.NoError(t, db.Create(&group).Error)
	post := createPost(t, db, alice, "trip report", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), &group.ID)

	w := doRequest(r, http.MethodDelete, "/api/v1/groups/travel", tokenFor(t, admin), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var survived models.Post
	require.NoError(t, db.First(&survived, post.ID).Error)
	assert.Nil(t, survived.GroupID)

	var groups int64
	require.NoError(t, db.Model(&models.Group{}).Count(&groups).Error)
	assert.Equal(t, int64(0), groups)
}

func TestGroupAdminEndpoints(t *testing.T) {
	r, db := setupTest(t)
	admin := createUser(t, db, "admin")
	alice := createUser(t, db, "alice")

	body := `{"title":"Travel","slug":"travel","description":"trips"}`

	t.Run("non-admin is forbidden", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/groups", tokenFor(t, alice), body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin creates group", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/groups", tokenFor(t, admin), body)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/groups", tokenFor(t, admin), body)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid slug rejected", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/groups", tokenFor(t, admin), `{"title":"X","slug":"Bad Slug!"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete unknown group", func(t *testing.T) {
		w := doRequest(r, http.MethodDelete, "/api/v1/groups/nope", tokenFor(t, admin), nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRegisterAndLogin(t *testing.T) {
	r, db := setupTest(t)

	t.Run("register", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/auth/register", "", `{"username":"dave","password":"secret1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		assert.NotEmpty(t, env.Data["token"])
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/auth/register", "", `{"username":"dave","password":"secret1"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login and me", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/auth/login", "", `{"username":"dave","password":"secret1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		token := env.Data["token"].(string)

		w = doRequest(r, http.MethodGet, "/api/v1/auth/me", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		env = decodeEnvelope(t, w)
		user := env.Data["user"].(map[string]interface{})
		assert.Equal(t, "dave", user["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/api/v1/auth/login", "", `{"username":"dave","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		var user models.User
		require.NoError(t, db.Where("username = ?", "dave").First(&user).Error)
		token := tokenFor(t, user)

		w := doRequest(r, http.MethodPost, "/api/v1/auth/logout", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, http.MethodGet, "/api/v1/auth/me", token, nil, "")
		assert.Equal(t, http.StatusFound, w.Code)
	})
}

func TestUnmatchedRouteIs404(t *testing.T) {
	r, _ := setupTest(t)
	w := doRequest(r, http.MethodGet, "/unexisting_page/", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, 40400, env.Code)
}

func TestStats(t *testing.T) {
	r, db := setupTest(t)
	alice := createUser(t, db, "alice")
	post := createPost(t, db, alice, "body", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), nil)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, AuthorID: alice.ID, Text: "hey"}).Error)

	w := doRequest(r, http.MethodGet, "/api/v1/stats", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, float64(1), env.Data["user_count"])
	assert.Equal(t, float64(1), env.Data["post_count"])
	assert.Equal(t, float64(1), env.Data["comment_count"])
}
