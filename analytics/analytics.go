package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leflow/common"
)

const visitorCookieName = "leflow_visitor_id"

// VisitEvent is one tracked visit to the giveaway pages. ProjectID is nil
// for visits to the project listing itself.
type VisitEvent struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	ProjectID *int      `gorm:"index"`
	CookieID  string    `gorm:"not null;index"`
	Event     string    `gorm:"not null;default:'visit'"`
	IP        string    `gorm:"not null"`
	Language  *string
	Browser   *string
	CreatedAt time.Time `gorm:"index"`
}

// AnalyticsModule writes visit events to a separate database. A nil module
// is valid and tracks nothing, so callers never need to check whether
// analytics is configured.
type AnalyticsModule struct {
	db *gorm.DB
}

func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		log.Println("Analytics DB is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&VisitEvent{}); err != nil {
		log.Printf("Error migrating visit_events table: %v", err)
		return nil
	}

	log.Println("Analytics module initialized successfully")
	return &AnalyticsModule{db: db}
}

// TrackVisit records a visit unless the same visitor already produced one
// for the same target within the last 30 minutes, so refreshes don't
// inflate the numbers.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, projectID *int) {
	if a == nil || a.db == nil {
		return
	}

	cookieID := a.getOrCreateCookieID(c)

	thirtyMinutesAgo := time.Now().Add(-30 * time.Minute)

	var recentVisit VisitEvent
	query := a.db.Where("cookie_id = ? AND created_at > ?", cookieID, thirtyMinutesAgo)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	} else {
		query = query.Where("project_id IS NULL")
	}

	if err := query.First(&recentVisit).Error; err == nil {
		return
	}

	ip := common.ClientIP(c)
	if ip == "" {
		ip = c.ClientIP()
	}

	event := VisitEvent{
		ProjectID: projectID,
		CookieID:  cookieID,
		Event:     "visit",
		IP:        ip,
		Language:  extractLanguage(c),
		Browser:   extractBrowser(c.Request.UserAgent()),
		CreatedAt: time.Now(),
	}

	// Written off the request path so tracking never slows a response.
	go func() {
		if err := a.db.Create(&event).Error; err != nil {
			log.Printf("Error saving analytics event: %v", err)
		}
	}()
}

func (a *AnalyticsModule) getOrCreateCookieID(c *gin.Context) string {
	if cookie, err := c.Cookie(visitorCookieName); err == nil && cookie != "" {
		return cookie
	}

	data := time.Now().String() + c.ClientIP() + c.Request.UserAgent()
	hash := sha256.Sum256([]byte(data))
	cookieID := hex.EncodeToString(hash[:])

	// two-year visitor cookie
	c.SetCookie(
		visitorCookieName,
		cookieID,
		60*60*24*365*2,
		"/",
		"",
		false,
		true,
	)

	return cookieID
}

func extractBrowser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var browser string

	// order matters, the more specific user agents first
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	default:
		browser = "Other"
	}

	return &browser
}

func extractLanguage(c *gin.Context) *string {
	acceptLang := c.GetHeader("Accept-Language")
	if acceptLang == "" {
		return nil
	}

	// "sr-RS,sr;q=0.9,en;q=0.8" -> "sr-RS"
	lang := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	lang = strings.Split(lang, ";")[0]
	return &lang
}

// DayVisits is the visit count for one calendar day.
type DayVisits struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ProjectVisits is the visit count for one project's comment page.
type ProjectVisits struct {
	ProjectID int   `json:"projectId"`
	Count     int64 `json:"count"`
}

// GetVisitsByDay returns one entry per day for the last N days, zero-filled
// for days with no visits.
func (a *AnalyticsModule) GetVisitsByDay(days int) []DayVisits {
	if a == nil || a.db == nil {
		return []DayVisits{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []struct {
		Date  string
		Count int64
	}

	a.db.Model(&VisitEvent{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayVisits := make([]DayVisits, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i))
		dayVisits[i] = DayVisits{
			Date:  date.Format("2006-01-02"),
			Count: 0,
		}
	}

	for _, result := range results {
		for i := range dayVisits {
			if dayVisits[i].Date == result.Date {
				dayVisits[i].Count = result.Count
				break
			}
		}
	}

	return dayVisits
}

// GetTopProjects returns the most visited projects of the last N days.
func (a *AnalyticsModule) GetTopProjects(days int, limit int) []ProjectVisits {
	if a == nil || a.db == nil {
		return []ProjectVisits{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []ProjectVisits
	a.db.Model(&VisitEvent{}).
		Select("project_id as project_id, COUNT(*) as count").
		Where("project_id IS NOT NULL AND created_at >= ?", startDate).
		Group("project_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}
