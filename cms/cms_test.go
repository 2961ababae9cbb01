package cms

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leflow/auth"
	"leflow/cache"
	"leflow/models"
)

type stubMailer struct{}

func (stubMailer) SendVerificationEmail(to, code string) error { return nil }

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{}, &models.CmsContent{}, &models.CmsMedia{})
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Cleanup(func() { cache.ClearScope(cacheScope) })
	cache.ClearScope(cacheScope)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))

	authModule := auth.NewAuthModule(db, stubMailer{})
	authModule.RegisterRoutes(router)

	cmsModule := NewCmsModule(db, authModule)
	cmsModule.RegisterRoutes(router)
	return router
}

var testPasswordHash string

func TestMain(m *testing.M) {
	db := setupTestDB()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	auth.NewAuthModule(db, stubMailer{}).RegisterRoutes(router)

	payload, _ := json.Marshal(gin.H{
		"email": "seed@example.com", "username": "seeduser", "password": "password123",
	})
	req, _ := http.NewRequest("POST", "/api/register", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var seeded models.User
	db.Where("username = ?", "seeduser").First(&seeded)
	testPasswordHash = seeded.PasswordHash

	m.Run()
}

func createAdmin(db *gorm.DB) *models.User {
	user := &models.User{
		Email:         "admin@example.com",
		Username:      "admin",
		PasswordHash:  testPasswordHash,
		Role:          models.RoleAdmin,
		EmailVerified: true,
	}
	db.Create(user)
	return user
}

func request(router *gin.Engine, method, path string, body interface{}, cookie string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.Header.Add("Cookie", cookie)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func adminCookie(t *testing.T, router *gin.Engine) string {
	w := request(router, "POST", "/api/login", gin.H{
		"username": "admin", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	assert.NotEmpty(t, cookies)
	return cookies[0].Name + "=" + cookies[0].Value
}

func TestUpsertContent_CreateThenUpdate(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	entry := gin.H{
		"page": "home", "section": "hero", "contentKey": "hero_title",
		"contentValue": "Dobrodošli",
	}
	w := request(router, "PUT", "/api/cms/content/single", entry, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	entry["contentValue"] = "Dobrodošli u studio"
	w = request(router, "PUT", "/api/cms/content/single", entry, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.CmsContent{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var row models.CmsContent
	db.First(&row)
	assert.Equal(t, "Dobrodošli u studio", row.ContentValue)
	assert.Equal(t, "text", row.ContentType)
}

func TestUpsertContent_Batch(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	entries := []gin.H{
		{"page": "home", "section": "hero", "contentKey": "hero_title", "contentValue": "Naslov"},
		{"page": "home", "section": "hero", "contentKey": "hero_subtitle", "contentValue": "Podnaslov"},
	}
	w := request(router, "POST", "/api/cms/content", entries, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.CmsContent{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestUpsertContent_Validation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	w := request(router, "PUT", "/api/cms/content/single", gin.H{
		"page": "", "section": "hero", "contentKey": "x", "contentValue": "y",
	}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContent_RequiresAdminForWrites(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)

	w := request(router, "PUT", "/api/cms/content/single", gin.H{
		"page": "home", "section": "hero", "contentKey": "x", "contentValue": "y",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListContent_FilterByPage(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)

	db.Create(&models.CmsContent{Page: "home", Section: "hero", ContentKey: "a", ContentType: "text", ContentValue: "1"})
	db.Create(&models.CmsContent{Page: "team", Section: "members", ContentKey: "b", ContentType: "text", ContentValue: "2"})

	w := request(router, "GET", "/api/cms/content?page=home", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var content []models.CmsContent
	json.Unmarshal(w.Body.Bytes(), &content)
	assert.Len(t, content, 1)
	assert.Equal(t, "home", content[0].Page)
}

func TestListContent_CacheHitAndInvalidation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	db.Create(&models.CmsContent{Page: "home", Section: "hero", ContentKey: "title", ContentType: "text", ContentValue: "Staro"})

	w := request(router, "GET", "/api/cms/content?page=home", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = request(router, "GET", "/api/cms/content?page=home", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "Staro")

	// any write drops the cache, the next read sees the fresh value
	w = request(router, "PUT", "/api/cms/content/single", gin.H{
		"page": "home", "section": "hero", "contentKey": "title", "contentValue": "Novo",
	}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, "GET", "/api/cms/content?page=home", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Body.String(), "Novo")
}

func TestDeleteTeamMember(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	db.Create(&models.CmsContent{Page: "team", Section: "members", ContentKey: "member_1_name", ContentType: "text", ContentValue: "Ana"})
	db.Create(&models.CmsContent{Page: "team", Section: "members", ContentKey: "member_1_role", ContentType: "text", ContentValue: "Producent"})
	db.Create(&models.CmsContent{Page: "team", Section: "members", ContentKey: "member_2_name", ContentType: "text", ContentValue: "Marko"})

	w := request(router, "DELETE", "/api/cms/team-member/1", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	var remaining []models.CmsContent
	db.Find(&remaining)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "member_2_name", remaining[0].ContentKey)
}

func TestMedia_UpsertListDelete(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(t, db)
	createAdmin(db)
	cookie := adminCookie(t, router)

	entry := gin.H{
		"page": "home", "section": "hero", "assetKey": "background",
		"filePath": "assets/cms/home/bg.jpg",
	}
	w := request(router, "POST", "/api/cms/media", entry, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	entry["filePath"] = "assets/cms/home/bg2.jpg"
	w = request(router, "POST", "/api/cms/media", entry, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.CmsMedia{}).Count(&count)
	assert.Equal(t, int64(1), count)

	w = request(router, "GET", "/api/cms/media?page=home", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var media []models.CmsMedia
	json.Unmarshal(w.Body.Bytes(), &media)
	assert.Len(t, media, 1)
	assert.Equal(t, "assets/cms/home/bg2.jpg", media[0].FilePath)

	w = request(router, "DELETE", "/api/cms/media/"+strconv.Itoa(media[0].ID), nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	db.Model(&models.CmsMedia{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
