package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"leflow/common"
	"leflow/models"
)

type stubMailer struct {
	sentTo   []string
	lastCode string
	fail     bool
}

func (m *stubMailer) SendVerificationEmail(to, code string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sentTo = append(m.sentTo, to)
	m.lastCode = code
	return nil
}

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{})
	return db
}

func setupTestRouter(a *AuthModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	a.RegisterRoutes(router)
	return router
}

func createTestUser(db *gorm.DB, username, password string, verified bool) *models.User {
	hash, _ := hashPassword(password)
	user := &models.User{
		Email:         username + "@example.com",
		Username:      username,
		PasswordHash:  hash,
		Role:          models.RoleUser,
		EmailVerified: verified,
	}
	db.Create(user)
	return user
}

func postJSON(router *gin.Engine, method, path string, body interface{}, cookies ...string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.Header.Add("Cookie", c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginCookie(t *testing.T, router *gin.Engine, username, password string) string {
	w := postJSON(router, "POST", "/api/login", gin.H{
		"username": username,
		"password": password,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	result := w.Result()
	cookies := result.Cookies()
	assert.NotEmpty(t, cookies)
	return cookies[0].Name + "=" + cookies[0].Value
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("testpassword")
	assert.NoError(t, err)
	assert.Contains(t, hash, ".")

	ok, err := checkPasswordHash("testpassword", hash)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkPasswordHash("wrongpassword", hash)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPasswordHash_Malformed(t *testing.T) {
	_, err := checkPasswordHash("anything", "not-a-valid-stored-hash")
	assert.Error(t, err)

	_, err = checkPasswordHash("anything", "zzzz.gggg")
	assert.Error(t, err)
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := generateVerificationCode()
	assert.NoError(t, err)
	assert.Len(t, code, 6)
	assert.GreaterOrEqual(t, code[0], byte('1'))
}

func TestRegister_Success(t *testing.T) {
	db := setupTestDB()
	mailer := &stubMailer{}
	router := setupTestRouter(NewAuthModule(db, mailer))

	w := postJSON(router, "POST", "/api/register", gin.H{
		"email":    "new@example.com",
		"username": "newuser",
		"password": "password123",
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var user models.User
	err := db.Where("email = ?", "new@example.com").First(&user).Error
	assert.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Len(t, user.VerificationCode, 6)
	assert.NotNil(t, user.VerificationExpiresAt)
	assert.Equal(t, []string{"new@example.com"}, mailer.sentTo)
	assert.Equal(t, user.VerificationCode, mailer.lastCode)
}

func TestRegister_Validation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	w := postJSON(router, "POST", "/api/register", gin.H{
		"email": "bad-email", "username": "newuser", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "POST", "/api/register", gin.H{
		"email": "a@b.com", "username": "ab", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "POST", "/api/register", gin.H{
		"email": "a@b.com", "username": "newuser", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))
	createTestUser(db, "taken", "password123", true)

	w := postJSON(router, "POST", "/api/register", gin.H{
		"email":    "other@example.com",
		"username": "taken",
		"password": "password123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Korisničko ime već postoji")
}

func TestRegister_RacingDuplicateMapsToConflict(t *testing.T) {
	db := setupTestDB()
	createTestUser(db, "taken", "password123", true)

	// an insert that slipped past the existence checks hits the unique
	// constraint; the handler turns that into the duplicate message rather
	// than a server error
	err := db.Create(&models.User{
		Email:        "other@example.com",
		Username:     "taken",
		PasswordHash: "x",
		Role:         models.RoleUser,
	}).Error
	assert.True(t, common.IsUniqueViolation(err))
	assert.Equal(t, "Korisničko ime već postoji", duplicateFieldMessage(err))

	err = db.Create(&models.User{
		Email:        "taken@example.com",
		Username:     "other",
		PasswordHash: "x",
		Role:         models.RoleUser,
	}).Error
	assert.True(t, common.IsUniqueViolation(err))
	assert.Equal(t, "Email adresa već postoji", duplicateFieldMessage(err))
}

func TestRegister_MailFailureRollsBack(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{fail: true}))

	w := postJSON(router, "POST", "/api/register", gin.H{
		"email":    "ghost@example.com",
		"username": "ghostuser",
		"password": "password123",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var count int64
	db.Model(&models.User{}).Where("email = ?", "ghost@example.com").Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestVerifyEmail_Success(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "pending", "password123", false)
	expires := time.Now().Add(10 * time.Minute)
	db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "123456",
		"verification_expires_at": expires,
	})

	w := postJSON(router, "POST", "/api/verify-email", gin.H{
		"userId": user.ID,
		"code":   "123456",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.User
	db.First(&updated, user.ID)
	assert.True(t, updated.EmailVerified)
	assert.Empty(t, updated.VerificationCode)

	// verification logs the user in
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "pending", "password123", false)
	expires := time.Now().Add(10 * time.Minute)
	db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "123456",
		"verification_expires_at": expires,
	})

	w := postJSON(router, "POST", "/api/verify-email", gin.H{
		"userId": user.ID,
		"code":   "654321",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Nevažeći ili istekao verifikacioni kod")
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "pending", "password123", false)
	expires := time.Now().Add(-time.Minute)
	db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "123456",
		"verification_expires_at": expires,
	})

	w := postJSON(router, "POST", "/api/verify-email", gin.H{
		"userId": user.ID,
		"code":   "123456",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEmail_UnknownUser(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	w := postJSON(router, "POST", "/api/verify-email", gin.H{
		"userId": 999,
		"code":   "123456",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyEmail_BannedAccount(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "pending", "password123", false)
	expires := time.Now().Add(10 * time.Minute)
	db.Model(user).Updates(map[string]interface{}{
		"verification_code":       "123456",
		"verification_expires_at": expires,
		"banned":                  true,
	})

	w := postJSON(router, "POST", "/api/verify-email", gin.H{
		"userId": user.ID,
		"code":   "123456",
	})

	// a valid code does not open a session for a banned account
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Vaš nalog je banovan")
	assert.Empty(t, w.Result().Cookies())

	var updated models.User
	db.First(&updated, user.ID)
	assert.False(t, updated.EmailVerified)
}

func TestResendVerification(t *testing.T) {
	db := setupTestDB()
	mailer := &stubMailer{}
	router := setupTestRouter(NewAuthModule(db, mailer))

	user := createTestUser(db, "pending", "password123", false)
	db.Model(user).Update("verification_code", "111111")

	w := postJSON(router, "POST", "/api/resend-verification", gin.H{
		"email": user.Email,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.User
	db.First(&updated, user.ID)
	assert.NotEqual(t, "111111", updated.VerificationCode)
	assert.Equal(t, updated.VerificationCode, mailer.lastCode)
}

func TestResendVerification_AlreadyVerified(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "done", "password123", true)

	w := postJSON(router, "POST", "/api/resend-verification", gin.H{
		"email": user.Email,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email je već verifikovan")
}

func TestResendVerification_UnknownEmail(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	w := postJSON(router, "POST", "/api/resend-verification", gin.H{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Korisnik sa ovim emailom nije pronađen")
}

func TestLogin_Success(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	createTestUser(db, "member", "password123", true)

	cookie := loginCookie(t, router, "member", "password123")

	w := postJSON(router, "GET", "/api/user", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "member")
}

func TestLogin_ByEmail(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "member", "password123", true)

	w := postJSON(router, "POST", "/api/login", gin.H{
		"username": user.Email,
		"password": "password123",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	createTestUser(db, "member", "password123", true)

	// wrong password and unknown user produce the same message
	w := postJSON(router, "POST", "/api/login", gin.H{
		"username": "member", "password": "wrongpass1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Pogrešno korisničko ime ili lozinka")

	w = postJSON(router, "POST", "/api/login", gin.H{
		"username": "nobody", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Pogrešno korisničko ime ili lozinka")
}

func TestLogin_Banned(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "banned", "password123", true)
	db.Model(user).Update("banned", true)

	w := postJSON(router, "POST", "/api/login", gin.H{
		"username": "banned", "password": "password123",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Vaš nalog je banovan")
}

func TestBannedSessionCleared(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	user := createTestUser(db, "member", "password123", true)
	cookie := loginCookie(t, router, "member", "password123")

	// ban lands on the very next request, no re-login needed
	db.Model(user).Update("banned", true)

	w := postJSON(router, "GET", "/api/user", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	w := postJSON(router, "POST", "/api/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "POST", "/api/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCurrentUser_RequiresSession(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(NewAuthModule(db, &stubMailer{}))

	w := postJSON(router, "GET", "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
