package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"leflow/models"
)

const usernameChangeCooldownDays = 30

func (a *AuthModule) registerAccountRoutes(router *gin.Engine) {
	router.POST("/api/user/accept-terms", a.RequireVerifiedEmail, a.acceptTerms)
	router.PUT("/api/user/update-profile", a.RequireVerifiedEmail, a.updateProfile)
	router.PUT("/api/user/change-password", a.RequireVerifiedEmail, a.changePassword)
}

func (a *AuthModule) acceptTerms(c *gin.Context) {
	user := CurrentUser(c)

	if err := a.db.Model(user).Update("terms_accepted", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (a *AuthModule) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	user := CurrentUser(c)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username != "" && len(req.Username) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Korisničko ime mora imati najmanje 3 karaktera"})
		return
	}
	if req.Email != "" && !emailPattern.MatchString(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unesite validnu email adresu"})
		return
	}

	updates := map[string]interface{}{}

	if req.Username != "" && req.Username != user.Username {
		// Renames are throttled to once per 30 days.
		if user.UsernameLastChanged != nil {
			daysSince := int(time.Since(*user.UsernameLastChanged).Hours() / 24)
			if daysSince < usernameChangeCooldownDays {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("Možete promeniti korisničko ime tek za %d dana", usernameChangeCooldownDays-daysSince),
				})
				return
			}
		}

		var existing models.User
		if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil && existing.ID != user.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Korisničko ime je već zauzeto"})
			return
		}

		updates["username"] = req.Username
		updates["username_last_changed"] = time.Now()
	}

	if req.Email != "" && req.Email != user.Email {
		var existing models.User
		if err := a.db.Where("email = ?", req.Email).First(&existing).Error; err == nil && existing.ID != user.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email adresa je već zauzeta"})
			return
		}

		updates["email"] = req.Email
	}

	if len(updates) > 0 {
		if err := a.db.Model(user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
			return
		}
	}

	var updated models.User
	if err := a.db.First(&updated, user.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *AuthModule) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trenutna i nova lozinka su obavezne"})
		return
	}

	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nova lozinka mora imati najmanje 6 karaktera"})
		return
	}

	user := CurrentUser(c)

	ok, err := checkPasswordHash(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Trenutna lozinka nije tačna"})
		return
	}

	passwordHash, err := hashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	if err := a.db.Model(user).Update("password_hash", passwordHash).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Lozinka je uspešno promenjena"})
}
