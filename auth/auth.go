package auth

import (
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leflow/common"
	"leflow/models"
)

// Mailer delivers verification codes. The SMTP service satisfies it in
// production; tests substitute a stub.
type Mailer interface {
	SendVerificationEmail(to, code string) error
}

const verificationCodeTTL = 15 * time.Minute

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthModule struct {
	db     *gorm.DB
	mailer Mailer
}

func NewAuthModule(db *gorm.DB, mailer Mailer) *AuthModule {
	return &AuthModule{
		db:     db,
		mailer: mailer,
	}
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/register", a.register)
	router.POST("/api/login", a.login)
	router.POST("/api/logout", a.logout)
	router.POST("/api/verify-email", a.verifyEmail)
	router.POST("/api/resend-verification", a.resendVerification)
	router.GET("/api/user", a.RequireAuth, a.currentUser)

	a.registerAccountRoutes(router)
}

// resolveUser loads the session user fresh from the database, so ban and
// role changes bind on the next request without re-login. A banned user's
// session is dropped on the spot. Aborts the request and returns nil when
// there is no usable session.
func (a *AuthModule) resolveUser(c *gin.Context) *models.User {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return nil
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		session.Clear()
		session.Save()
		c.AbortWithStatus(http.StatusUnauthorized)
		return nil
	}

	if user.Banned {
		session.Clear()
		session.Save()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Vaš nalog je banovan"})
		return nil
	}

	c.Set("user", &user)
	return &user
}

func (a *AuthModule) RequireAuth(c *gin.Context) {
	if a.resolveUser(c) == nil {
		return
	}
	c.Next()
}

// RequireVerifiedEmail gates participation features: 401 without a session,
// 403 while the email is unverified.
func (a *AuthModule) RequireVerifiedEmail(c *gin.Context) {
	user := a.resolveUser(c)
	if user == nil {
		return
	}

	if !user.EmailVerified {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":                "Morate verifikovati email adresu da biste pristupili ovoj funkcionalnosti",
			"requiresVerification": true,
		})
		return
	}

	c.Next()
}

func (a *AuthModule) RequireAdmin(c *gin.Context) {
	user := a.resolveUser(c)
	if user == nil {
		return
	}

	if !user.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Samo administratori mogu pristupiti ovoj funkcionalnosti"})
		return
	}

	c.Next()
}

// CurrentUser returns the user resolved by RequireAuth.
func CurrentUser(c *gin.Context) *models.User {
	user, _ := c.Get("user")
	return user.(*models.User)
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthModule) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unesite validnu email adresu"})
		return
	}
	if len(req.Username) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Korisničko ime mora imati najmanje 3 karaktera"})
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lozinka mora imati najmanje 8 karaktera"})
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Korisničko ime već postoji"})
		return
	}
	if err := a.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email adresa već postoji"})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	code, err := generateVerificationCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}
	expiresAt := time.Now().Add(verificationCodeTTL)

	user := models.User{
		Email:                 req.Email,
		Username:              req.Username,
		PasswordHash:          passwordHash,
		Role:                  models.RoleUser,
		EmailVerified:         false,
		VerificationCode:      code,
		VerificationExpiresAt: &expiresAt,
	}

	if err := a.db.Create(&user).Error; err != nil {
		// The unique indexes catch the race where two registrations pass the
		// existence checks concurrently.
		if common.IsUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": duplicateFieldMessage(err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	// Registration is all-or-nothing: an account must never exist without a
	// deliverable verification email.
	if err := a.mailer.SendVerificationEmail(user.Email, code); err != nil {
		log.Printf("Failed to send verification email to %s: %v", user.Email, err)
		a.db.Delete(&user)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Greška pri slanju verifikacionog email-a. Molimo proverite da li je email adresa ispravna i pokušajte ponovo.",
		})
		return
	}

	// Not logged in yet - email has to be verified first
	c.JSON(http.StatusCreated, user)
}

// duplicateFieldMessage picks the user-facing message for a unique-index
// violation on users; the sqlite error names the offending column.
func duplicateFieldMessage(err error) string {
	if strings.Contains(err.Error(), "users.email") {
		return "Email adresa već postoji"
	}
	return "Korisničko ime već postoji"
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	// Username first, then email - same error either way so a caller cannot
	// probe which accounts exist.
	var user models.User
	err := a.db.Where("username = ?", req.Username).First(&user).Error
	if err != nil {
		err = a.db.Where("email = ?", req.Username).First(&user).Error
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Pogrešno korisničko ime ili lozinka"})
		return
	}

	ok, err := checkPasswordHash(req.Password, user.PasswordHash)
	if err != nil {
		log.Printf("Password check failed for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Pogrešno korisničko ime ili lozinka"})
		return
	}

	// Ban status is only revealed after the password checks out.
	if user.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "Vaš nalog je banovan"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusOK, user)
}

func (a *AuthModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Status(http.StatusOK)
}

type verifyEmailRequest struct {
	UserID int    `json:"userId"`
	Code   string `json:"code"`
}

func (a *AuthModule) verifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId i kod su obavezni"})
		return
	}

	var user models.User
	if err := a.db.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Korisnik nije pronađen"})
		return
	}

	if user.VerificationCode == "" || user.VerificationCode != req.Code ||
		user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nevažeći ili istekao verifikacioni kod"})
		return
	}

	if user.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "Vaš nalog je banovan"})
		return
	}

	updates := map[string]interface{}{
		"email_verified":          true,
		"verification_code":       "",
		"verification_expires_at": nil,
	}
	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	user.EmailVerified = true
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

func (a *AuthModule) resendVerification(c *gin.Context) {
	var req resendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email je obavezan"})
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Korisnik sa ovim emailom nije pronađen"})
		return
	}

	if user.EmailVerified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email je već verifikovan"})
		return
	}

	code, err := generateVerificationCode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}
	expiresAt := time.Now().Add(verificationCodeTTL)

	// A reissued code replaces any pending one.
	updates := map[string]interface{}{
		"verification_code":       code,
		"verification_expires_at": expiresAt,
	}
	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	if err := a.mailer.SendVerificationEmail(user.Email, code); err != nil {
		log.Printf("Failed to resend verification email to %s: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška pri slanju emaila"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Novi verifikacioni kod je poslat"})
}

func (a *AuthModule) currentUser(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}
