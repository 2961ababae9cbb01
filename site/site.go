package site

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leflow/auth"
	"leflow/common"
	"leflow/email"
	"leflow/models"
)

const (
	rateLimitWindow    = time.Hour
	maxRequestsPerHour = 3
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SiteModule handles the public contact form and its admin listing.
type SiteModule struct {
	db     *gorm.DB
	auth   *auth.AuthModule
	mailer *email.EmailService

	// contact form rate limiter, request timestamps per client IP
	mu     sync.Mutex
	limits map[string][]time.Time
}

func NewSiteModule(db *gorm.DB, authModule *auth.AuthModule, mailer *email.EmailService) *SiteModule {
	return &SiteModule{
		db:     db,
		auth:   authModule,
		mailer: mailer,
		limits: make(map[string][]time.Time),
	}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/contact", s.submitContact)
	router.GET("/api/contact", s.auth.RequireAdmin, s.listContacts)
}

// checkRateLimit reports whether ip may submit another contact request. When
// over the limit it returns the minutes until the oldest request ages out.
func (s *SiteModule) checkRateLimit(ip string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	recent := s.limits[ip][:0]
	for _, ts := range s.limits[ip] {
		if now.Sub(ts) < rateLimitWindow {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= maxRequestsPerHour {
		oldest := recent[0]
		for _, ts := range recent {
			if ts.Before(oldest) {
				oldest = ts
			}
		}
		remaining := int((rateLimitWindow - now.Sub(oldest)).Minutes()) + 1
		s.limits[ip] = recent
		return false, remaining
	}

	s.limits[ip] = append(recent, now)
	return true, 0
}

type contactRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Service       string `json:"service"`
	PreferredDate string `json:"preferredDate"`
	Message       string `json:"message"`
}

func (s *SiteModule) submitContact(c *gin.Context) {
	// Rate limit only when the client IP is determinable. Localhost skips
	// the limiter so local development isn't throttled.
	if ip := common.ClientIP(c); ip != "" {
		allowed, remaining := s.checkRateLimit(ip)
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Poslali ste previše upita. Molimo pokušajte ponovo za %d minuta.", remaining),
			})
			return
		}
	}

	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Service = strings.TrimSpace(req.Service)
	req.Message = strings.TrimSpace(req.Message)

	switch {
	case len(req.Name) < 2:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ime mora imati najmanje 2 karaktera"})
		return
	case !emailPattern.MatchString(req.Email):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unesite validnu email adresu"})
		return
	case len(req.Phone) < 6:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unesite validan broj telefona"})
		return
	case req.Service == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Izaberite uslugu"})
		return
	case len(req.Message) < 10:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Poruka mora imati najmanje 10 karaktera"})
		return
	}

	submission := models.ContactSubmission{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Service:       req.Service,
		PreferredDate: req.PreferredDate,
		Message:       req.Message,
	}

	if err := s.db.Create(&submission).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	// Notify the studio inbox. A send failure must not fail the submission,
	// the row is already stored.
	inbox := os.Getenv("CONTACT_INBOX")
	if inbox == "" {
		inbox = "business@studioleflow.com"
	}
	if err := s.mailer.SendContactNotice(inbox, req.Service, req.Name, req.Email,
		req.Phone, req.PreferredDate, req.Message); err != nil {
		log.Printf("Contact notice email failed: %v", err)
	}

	c.JSON(http.StatusCreated, submission)
}

func (s *SiteModule) listContacts(c *gin.Context) {
	var submissions []models.ContactSubmission
	if err := s.db.Order("created_at DESC").Find(&submissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, submissions)
}
