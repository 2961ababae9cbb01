package admin

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"leflow/analytics"
	"leflow/auth"
	"leflow/models"
)

type AdminModule struct {
	db        *gorm.DB
	auth      *auth.AuthModule
	analytics *analytics.AnalyticsModule
	cms       CacheClearer
}

// CacheClearer lets the admin surface flush the CMS cache without a direct
// dependency on the cms package.
type CacheClearer interface {
	ClearCache() error
}

func NewAdminModule(db *gorm.DB, authModule *auth.AuthModule, analyticsModule *analytics.AnalyticsModule, cms CacheClearer) *AdminModule {
	return &AdminModule{
		db:        db,
		auth:      authModule,
		analytics: analyticsModule,
		cms:       cms,
	}
}

func (m *AdminModule) RegisterRoutes(router *gin.Engine) {
	admin := router.Group("/api/admin", m.auth.RequireAdmin)

	admin.GET("/stats", m.stats)
	admin.GET("/users", m.listUsers)
	admin.POST("/users/:id/ban", m.banUser)
	admin.POST("/users/:id/unban", m.unbanUser)
	admin.POST("/users/:id/toggle-admin", m.toggleAdmin)
	admin.DELETE("/users/:id", m.deleteUser)

	admin.GET("/all-projects", m.allProjects)
	admin.GET("/pending-projects", m.pendingProjects)
	admin.POST("/projects/:id/approve", m.approveProject)
	admin.DELETE("/projects/:id", m.deleteProject)

	admin.GET("/comments", m.listComments)
	admin.DELETE("/comments/:id", m.deleteComment)

	admin.POST("/giveaway/toggle", m.toggleGiveaway)
	admin.POST("/cms/clear-cache", m.clearCmsCache)
}

func (m *AdminModule) stats(c *gin.Context) {
	var totalUsers, totalProjects, totalVotes, totalComments int64
	m.db.Model(&models.User{}).Count(&totalUsers)
	m.db.Model(&models.Project{}).Count(&totalProjects)
	m.db.Model(&models.Vote{}).Count(&totalVotes)
	m.db.Model(&models.Comment{}).Count(&totalComments)

	c.JSON(http.StatusOK, gin.H{
		"totalUsers":    totalUsers,
		"totalProjects": totalProjects,
		"totalVotes":    totalVotes,
		"totalComments": totalComments,
		"visitsByDay":   m.analytics.GetVisitsByDay(30),
		"topProjects":   m.analytics.GetTopProjects(30, 5),
	})
}

func (m *AdminModule) listUsers(c *gin.Context) {
	var users []models.User
	if err := m.db.Order("created_at DESC").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, users)
}

func (m *AdminModule) banUser(c *gin.Context) {
	userID, ok := idParam(c, "Nevažeći ID korisnika")
	if !ok {
		return
	}

	if err := m.db.Model(&models.User{}).Where("id = ?", userID).
		Update("banned", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

func (m *AdminModule) unbanUser(c *gin.Context) {
	userID, ok := idParam(c, "Nevažeći ID korisnika")
	if !ok {
		return
	}

	if err := m.db.Model(&models.User{}).Where("id = ?", userID).
		Update("banned", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

func (m *AdminModule) toggleAdmin(c *gin.Context) {
	userID, ok := idParam(c, "Nevažeći ID korisnika")
	if !ok {
		return
	}

	if userID == auth.CurrentUser(c).ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ne možete ukloniti sebi admin privilegije"})
		return
	}

	var user models.User
	if err := m.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Korisnik nije pronađen"})
		return
	}

	newRole := models.RoleAdmin
	if user.Role == models.RoleAdmin {
		newRole = models.RoleUser
	}

	if err := m.db.Model(&user).Update("role", newRole).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

// deleteUser removes a user and everything attached to them. Votes and
// comments sitting on the user's projects go first so the projects can be
// dropped without leaving orphan rows, then the user's own votes and
// comments elsewhere, then the projects, then the user. Projects that survive
// the cascade get their vote counters decremented to match the removed vote
// rows. The whole cascade runs in one transaction.
func (m *AdminModule) deleteUser(c *gin.Context) {
	userID, ok := idParam(c, "Nevažeći ID korisnika")
	if !ok {
		return
	}

	if userID == auth.CurrentUser(c).ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ne možete obrisati sami sebe"})
		return
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		var projectIDs []int
		if err := tx.Model(&models.Project{}).
			Where("user_id = ?", userID).
			Pluck("id", &projectIDs).Error; err != nil {
			return err
		}

		if len(projectIDs) > 0 {
			if err := tx.Where("project_id IN ?", projectIDs).
				Delete(&models.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("project_id IN ?", projectIDs).
				Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		// A user holds at most one vote per project, so one decrement per
		// voted project keeps votes_count in step with the vote rows. The
		// user's own projects are deleted below, so touching them is moot.
		var votedProjectIDs []int
		if err := tx.Model(&models.Vote{}).
			Where("user_id = ?", userID).
			Pluck("project_id", &votedProjectIDs).Error; err != nil {
			return err
		}
		if len(votedProjectIDs) > 0 {
			if err := tx.Model(&models.Project{}).
				Where("id IN ?", votedProjectIDs).
				UpdateColumn("votes_count", gorm.Expr("votes_count - 1")).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Project{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		log.Printf("User delete cascade failed for %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

type adminProjectView struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Genre        string    `json:"genre"`
	Mp3URL       string    `json:"mp3Url"`
	UserID       int       `json:"userId"`
	Username     string    `json:"username"`
	UploadDate   time.Time `json:"uploadDate"`
	VotesCount   int       `json:"votesCount"`
	CurrentMonth string    `json:"currentMonth"`
	Approved     bool      `json:"approved"`
}

func (m *AdminModule) allProjects(c *gin.Context) {
	m.projectList(c, false)
}

func (m *AdminModule) pendingProjects(c *gin.Context) {
	m.projectList(c, true)
}

func (m *AdminModule) projectList(c *gin.Context, pendingOnly bool) {
	query := m.db.Table("projects").
		Select("projects.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = projects.user_id").
		Order("projects.upload_date DESC")
	if pendingOnly {
		query = query.Where("projects.approved = ?", false)
	}

	var projects []adminProjectView
	if err := query.Scan(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, projects)
}

func (m *AdminModule) approveProject(c *gin.Context) {
	projectID, ok := idParam(c, "Nevažeći ID projekta")
	if !ok {
		return
	}

	// Re-approving an already approved project is a no-op.
	if err := m.db.Model(&models.Project{}).Where("id = ?", projectID).
		Update("approved", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

func (m *AdminModule) deleteProject(c *gin.Context) {
	projectID, ok := idParam(c, "Nevažeći ID projekta")
	if !ok {
		return
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

type adminCommentView struct {
	ID           int       `json:"id"`
	ProjectID    int       `json:"projectId"`
	ProjectTitle string    `json:"projectTitle"`
	UserID       int       `json:"userId"`
	Username     string    `json:"username"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (m *AdminModule) listComments(c *gin.Context) {
	var comments []adminCommentView
	err := m.db.Table("comments").
		Select("comments.*, users.username AS username, projects.title AS project_title").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Joins("LEFT JOIN projects ON projects.id = comments.project_id").
		Order("comments.created_at DESC").
		Scan(&comments).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, comments)
}

func (m *AdminModule) deleteComment(c *gin.Context) {
	commentID, ok := idParam(c, "Nevažeći ID komentara")
	if !ok {
		return
	}

	if err := m.db.Delete(&models.Comment{}, commentID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

type toggleGiveawayRequest struct {
	IsActive *bool `json:"isActive"`
}

func (m *AdminModule) toggleGiveaway(c *gin.Context) {
	var req toggleGiveawayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isActive mora biti boolean"})
		return
	}

	value := strconv.FormatBool(*req.IsActive)

	var setting models.Setting
	err := m.db.Where("key = ?", "giveaway_active").First(&setting).Error
	switch {
	case err == nil:
		err = m.db.Model(&setting).
			Updates(map[string]interface{}{"value": value, "updated_at": time.Now()}).Error
	case err == gorm.ErrRecordNotFound:
		err = m.db.Create(&models.Setting{Key: "giveaway_active", Value: value}).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.Status(http.StatusOK)
}

func (m *AdminModule) clearCmsCache(c *gin.Context) {
	if m.cms == nil {
		c.Status(http.StatusOK)
		return
	}

	if err := m.cms.ClearCache(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Greška na serveru"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func idParam(c *gin.Context, message string) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return 0, false
	}
	return id, true
}
