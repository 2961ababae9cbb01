package giveaway

import (
	"bytes"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"

	"leflow/analytics"
	"leflow/auth"
	"leflow/common"
	"leflow/models"
)

// markdown renderer for project descriptions. No raw-HTML passthrough here:
// descriptions are user content.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

type GiveawayModule struct {
	db        *gorm.DB
	auth      *auth.AuthModule
	analytics *analytics.AnalyticsModule
}

func NewGiveawayModule(db *gorm.DB, authModule *auth.AuthModule, analyticsModule *analytics.AnalyticsModule) *GiveawayModule {
	return &GiveawayModule{
		db:        db,
		auth:      authModule,
		analytics: analyticsModule,
	}
}

func (g *GiveawayModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/giveaway/settings", g.settings)
	router.GET("/api/giveaway/projects", g.listProjects)
	router.POST("/api/giveaway/projects", g.auth.RequireVerifiedEmail, g.submitProject)
	router.POST("/api/giveaway/vote", g.auth.RequireVerifiedEmail, g.vote)
	router.GET("/api/giveaway/projects/:id/comments", g.listComments)
	router.POST("/api/giveaway/comments", g.auth.RequireVerifiedEmail, g.addComment)
}

func (g *GiveawayModule) settings(c *gin.Context) {
	var setting models.Setting
	isActive := false
	if err := g.db.Where("key = ?", "giveaway_active").First(&setting).Error; err == nil {
		isActive = setting.Value == "true"
	}

	c.JSON(http.StatusOK, gin.H{"isActive": isActive})
}

// projectView is a project row joined with its author's username, plus the
// description rendered to HTML.
type projectView struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DescriptionHTML string    `gorm:"-" json:"descriptionHtml"`
	Genre           string    `json:"genre"`
	Mp3URL          string    `json:"mp3Url"`
	UserID          int       `json:"userId"`
	Username        string    `json:"username"`
	UploadDate      time.Time `json:"uploadDate"`
	VotesCount      int       `json:"votesCount"`
	CurrentMonth    string    `json:"currentMonth"`
	Approved        bool      `json:"approved"`
}

func (g *GiveawayModule) listProjects(c *gin.Context) {
	g.analytics.TrackVisit(c, nil)

	var projects []projectView
	err := g.db.Table("projects").
		Select("projects.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = projects.user_id").
		Where("projects.approved = ?", true).
		Order("projects.upload_date DESC").
		Scan(&projects).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	for i := range projects {
		projects[i].DescriptionHTML = renderMarkdown(projects[i].Description)
	}

	c.JSON(http.StatusOK, projects)
}

type submitProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Mp3URL      string `json:"mp3Url"`
}

func (g *GiveawayModule) submitProject(c *gin.Context) {
	user := auth.CurrentUser(c)

	if !user.TermsAccepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Morate prihvatiti pravila pre učešća u giveaway-u"})
		return
	}

	var req submitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Genre = strings.TrimSpace(req.Genre)

	if req.Mp3URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MP3 URL je obavezan"})
		return
	}
	if len(req.Title) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Naslov mora imati najmanje 3 karaktera"})
		return
	}
	if req.Genre == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Izaberite žanr"})
		return
	}
	if u, err := url.ParseRequestURI(req.Mp3URL); err != nil || u.Scheme == "" || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nevažeći URL"})
		return
	}

	// One submission per user per calendar month, approval status aside.
	currentMonth := time.Now().Format("2006-01")

	var count int64
	if err := g.db.Model(&models.Project{}).
		Where("user_id = ? AND current_month = ?", user.ID, currentMonth).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Već ste uploadovali projekat ovog meseca. Možete uploadovati samo 1 projekat mesečno."})
		return
	}

	project := models.Project{
		Title:        req.Title,
		Description:  req.Description,
		Genre:        req.Genre,
		Mp3URL:       req.Mp3URL,
		UserID:       user.ID,
		CurrentMonth: currentMonth,
		Approved:     false,
	}

	if err := g.db.Create(&project).Error; err != nil {
		// The (user_id, current_month) unique index catches the race where
		// two submissions pass the count check concurrently.
		if common.IsUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Već ste uploadovali projekat ovog meseca. Možete uploadovati samo 1 projekat mesečno."})
			return
		}
		log.Printf("Project create failed for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusCreated, project)
}

type voteRequest struct {
	ProjectID int `json:"projectId"`
}

func (g *GiveawayModule) vote(c *gin.Context) {
	user := auth.CurrentUser(c)

	if !user.TermsAccepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Morate prihvatiti pravila pre glasanja"})
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID projekta je obavezan"})
		return
	}

	var project models.Project
	if err := g.db.First(&project, req.ProjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Projekat nije pronađen"})
		return
	}

	ipAddress := common.ClientIP(c)
	if ipAddress == "" {
		ipAddress = "unknown"
	}

	// Toggle off: a second vote by the same user removes the first. This
	// path ignores the caller's current IP so a voter can always reconsider.
	var existing models.Vote
	err := g.db.Where("user_id = ? AND project_id = ?", user.ID, req.ProjectID).First(&existing).Error
	if err == nil {
		txErr := g.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			return tx.Model(&models.Project{}).
				Where("id = ?", req.ProjectID).
				UpdateColumn("votes_count", gorm.Expr("votes_count - 1")).Error
		})
		if txErr != nil {
			log.Printf("Vote removal failed for user %d project %d: %v", user.ID, req.ProjectID, txErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"action": "removed"})
		return
	}

	// One IP address backs at most one account per project.
	var ipVote models.Vote
	err = g.db.Where("project_id = ? AND ip_address = ? AND user_id <> ?", req.ProjectID, ipAddress, user.ID).
		First(&ipVote).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sa ove IP adrese je već glasano za ovaj projekat (drugi korisnik)"})
		return
	}

	vote := models.Vote{
		UserID:    user.ID,
		ProjectID: req.ProjectID,
		IPAddress: ipAddress,
	}

	// Vote row and denormalized counter move together or not at all.
	txErr := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		return tx.Model(&models.Project{}).
			Where("id = ?", req.ProjectID).
			UpdateColumn("votes_count", gorm.Expr("votes_count + 1")).Error
	})
	if txErr != nil {
		if common.IsUniqueViolation(txErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Sa ove IP adrese je već glasano za ovaj projekat (drugi korisnik)"})
			return
		}
		log.Printf("Vote create failed for user %d project %d: %v", user.ID, req.ProjectID, txErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"action": "added"})
}

type commentView struct {
	ID        int       `json:"id"`
	ProjectID int       `json:"projectId"`
	UserID    int       `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g *GiveawayModule) listComments(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nevažeći ID projekta"})
		return
	}

	g.analytics.TrackVisit(c, &projectID)

	var comments []commentView
	err = g.db.Table("comments").
		Select("comments.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Where("comments.project_id = ?", projectID).
		Order("comments.created_at DESC").
		Scan(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, comments)
}

type addCommentRequest struct {
	ProjectID int    `json:"projectId"`
	Text      string `json:"text"`
}

func (g *GiveawayModule) addComment(c *gin.Context) {
	user := auth.CurrentUser(c)

	if !user.TermsAccepted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Morate prihvatiti pravila pre komentarisanja"})
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validacija nije uspela"})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Komentar ne može biti prazan"})
		return
	}

	var project models.Project
	if err := g.db.First(&project, req.ProjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Projekat nije pronađen"})
		return
	}

	comment := models.Comment{
		ProjectID: req.ProjectID,
		UserID:    user.ID,
		Text:      req.Text,
	}

	if err := g.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func renderMarkdown(content string) string {
	if content == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// on render failure fall back to the raw text
		return content
	}
	return buf.String()
}
