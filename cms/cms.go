package cms

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leflow/auth"
	"leflow/cache"
	"leflow/models"
)

const (
	cacheScope  = "cms"
	cacheMaxAge = time.Hour
)

// CmsModule serves the editable page content. Public reads go through the
// disk cache; every admin write invalidates the whole scope since content
// for one page is cheap to rebuild.
type CmsModule struct {
	db   *gorm.DB
	auth *auth.AuthModule
}

func NewCmsModule(db *gorm.DB, authModule *auth.AuthModule) *CmsModule {
	return &CmsModule{db: db, auth: authModule}
}

func (m *CmsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/cms/content", m.listContent)
	router.GET("/api/cms/media", m.listMedia)

	router.POST("/api/cms/content", m.auth.RequireAdmin, m.upsertContentBatch)
	router.PUT("/api/cms/content/single", m.auth.RequireAdmin, m.upsertContentSingle)
	router.DELETE("/api/cms/team-member/:memberIndex", m.auth.RequireAdmin, m.deleteTeamMember)
	router.POST("/api/cms/media", m.auth.RequireAdmin, m.upsertMedia)
	router.DELETE("/api/cms/media/:id", m.auth.RequireAdmin, m.deleteMedia)
}

func (m *CmsModule) listContent(c *gin.Context) {
	page := c.Query("page")

	cacheKey := "content_all"
	if page != "" {
		cacheKey = "content_" + page
	}

	if cached, ok := cache.Read(cacheScope, cacheKey, cacheMaxAge); ok {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	query := m.db.Model(&models.CmsContent{})
	if page != "" {
		query = query.Where("page = ?", page)
	}

	var content []models.CmsContent
	if err := query.Order("page, section, content_key").Find(&content).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	if payload, err := json.Marshal(content); err == nil {
		if err := cache.Write(cacheScope, cacheKey, payload); err != nil {
			log.Printf("CMS cache write failed for %s: %v", cacheKey, err)
		}
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, content)
}

type contentEntry struct {
	Page         string `json:"page"`
	Section      string `json:"section"`
	ContentKey   string `json:"contentKey"`
	ContentType  string `json:"contentType"`
	ContentValue string `json:"contentValue"`
}

func (e *contentEntry) valid() bool {
	return strings.TrimSpace(e.Page) != "" &&
		strings.TrimSpace(e.Section) != "" &&
		strings.TrimSpace(e.ContentKey) != ""
}

func (m *CmsModule) upsertContentBatch(c *gin.Context) {
	var entries []contentEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	for _, entry := range entries {
		if !entry.valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
			return
		}
	}

	results := make([]models.CmsContent, 0, len(entries))
	for _, entry := range entries {
		row, err := m.upsertContent(entry)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
			return
		}
		results = append(results, row)
	}

	m.invalidateCache()
	c.JSON(http.StatusOK, results)
}

func (m *CmsModule) upsertContentSingle(c *gin.Context) {
	var entry contentEntry
	if err := c.ShouldBindJSON(&entry); err != nil || !entry.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	row, err := m.upsertContent(entry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	m.invalidateCache()
	c.JSON(http.StatusOK, row)
}

// upsertContent inserts or, on a (page, section, content_key) conflict,
// replaces the value. The returned row is re-read so the caller always
// gets the stored ID.
func (m *CmsModule) upsertContent(entry contentEntry) (models.CmsContent, error) {
	contentType := entry.ContentType
	if contentType == "" {
		contentType = "text"
	}

	row := models.CmsContent{
		Page:         entry.Page,
		Section:      entry.Section,
		ContentKey:   entry.ContentKey,
		ContentType:  contentType,
		ContentValue: entry.ContentValue,
		UpdatedAt:    time.Now(),
	}

	err := m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page"}, {Name: "section"}, {Name: "content_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content_type", "content_value", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return models.CmsContent{}, err
	}

	var stored models.CmsContent
	err = m.db.Where("page = ? AND section = ? AND content_key = ?",
		entry.Page, entry.Section, entry.ContentKey).First(&stored).Error
	return stored, err
}

// deleteTeamMember removes every content key belonging to one team member
// ("member_3_name", "member_3_role", ...).
func (m *CmsModule) deleteTeamMember(c *gin.Context) {
	memberIndex, err := strconv.Atoi(c.Param("memberIndex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nevažeći member index"})
		return
	}

	prefix := "member_" + strconv.Itoa(memberIndex) + "_"
	err = m.db.Where("page = ? AND section = ? AND content_key LIKE ?",
		"team", "members", prefix+"%").
		Delete(&models.CmsContent{}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška pri brisanju člana tima"})
		return
	}

	m.invalidateCache()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (m *CmsModule) listMedia(c *gin.Context) {
	page := c.Query("page")

	query := m.db.Model(&models.CmsMedia{})
	if page != "" {
		query = query.Where("page = ?", page)
	}

	var media []models.CmsMedia
	if err := query.Order("page, section, asset_key").Find(&media).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, media)
}

type mediaEntry struct {
	Page     string `json:"page"`
	Section  string `json:"section"`
	AssetKey string `json:"assetKey"`
	FilePath string `json:"filePath"`
}

func (m *CmsModule) upsertMedia(c *gin.Context) {
	var entry mediaEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}
	if strings.TrimSpace(entry.Page) == "" ||
		strings.TrimSpace(entry.Section) == "" ||
		strings.TrimSpace(entry.AssetKey) == "" ||
		strings.TrimSpace(entry.FilePath) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	row := models.CmsMedia{
		Page:      entry.Page,
		Section:   entry.Section,
		AssetKey:  entry.AssetKey,
		FilePath:  entry.FilePath,
		UpdatedAt: time.Now(),
	}

	err := m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page"}, {Name: "section"}, {Name: "asset_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_path", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	var stored models.CmsMedia
	if err := m.db.Where("page = ? AND section = ? AND asset_key = ?",
		entry.Page, entry.Section, entry.AssetKey).First(&stored).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (m *CmsModule) deleteMedia(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nevažeći ID"})
		return
	}

	if err := m.db.Delete(&models.CmsMedia{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearCache drops every cached CMS payload.
func (m *CmsModule) ClearCache() error {
	return cache.ClearScope(cacheScope)
}

func (m *CmsModule) invalidateCache() {
	if err := m.ClearCache(); err != nil {
		log.Printf("CMS cache invalidation failed: %v", err)
	}
}
