package models

import "time"

// Role is a closed set: a user is either a regular user or an admin.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID                    int        `gorm:"primary_key;autoIncrement" json:"id"`
	Email                 string     `gorm:"unique;not null" json:"email"`
	PasswordHash          string     `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Username              string     `gorm:"unique;not null" json:"username"`
	Role                  Role       `gorm:"not null;default:user" json:"role"`
	Banned                bool       `gorm:"not null;default:false" json:"banned"`
	TermsAccepted         bool       `gorm:"not null;default:false" json:"termsAccepted"`
	EmailVerified         bool       `gorm:"not null;default:false" json:"emailVerified"`
	VerificationCode      string     `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	UsernameLastChanged   *time.Time `json:"usernameLastChanged,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Project is one monthly contest submission. The composite unique index on
// (user_id, current_month) enforces the one-upload-per-month rule at the
// store level, so two concurrent submissions cannot both slip past the check.
type Project struct {
	ID           int       `gorm:"primary_key;autoIncrement" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Genre        string    `gorm:"not null" json:"genre"`
	Mp3URL       string    `gorm:"not null" json:"mp3Url"`
	UserID       int       `gorm:"not null;index;uniqueIndex:idx_projects_user_month" json:"userId"`
	UploadDate   time.Time `gorm:"autoCreateTime" json:"uploadDate"`
	VotesCount   int       `gorm:"not null;default:0" json:"votesCount"`
	CurrentMonth string    `gorm:"not null;uniqueIndex:idx_projects_user_month" json:"currentMonth"` // e.g. "2025-06"
	Approved     bool      `gorm:"not null;default:false" json:"approved"`
}

// Vote rows are doubly unique: one vote per user per project, and one vote
// per IP address per project.
type Vote struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_votes_user_project" json:"userId"`
	ProjectID int       `gorm:"not null;index;uniqueIndex:idx_votes_user_project;uniqueIndex:idx_votes_ip_project" json:"projectId"`
	IPAddress string    `gorm:"not null;uniqueIndex:idx_votes_ip_project" json:"ipAddress"`
	VotedAt   time.Time `gorm:"autoCreateTime" json:"votedAt"`
}

type Comment struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	ProjectID int       `gorm:"not null;index" json:"projectId"`
	UserID    int       `gorm:"not null;index" json:"userId"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Setting is a generic key/value row, used for the giveaway active toggle.
type Setting struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Key       string    `gorm:"unique;not null" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ContactSubmission struct {
	ID            int       `gorm:"primary_key;autoIncrement" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Email         string    `gorm:"not null" json:"email"`
	Phone         string    `gorm:"not null" json:"phone"`
	Service       string    `gorm:"not null" json:"service"`
	PreferredDate string    `json:"preferredDate,omitempty"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

// CmsContent holds editable site copy keyed by (page, section, contentKey).
type CmsContent struct {
	ID           int       `gorm:"primary_key;autoIncrement" json:"id"`
	Page         string    `gorm:"not null;uniqueIndex:idx_cms_page_section_key" json:"page"`       // "home", "team"
	Section      string    `gorm:"not null;uniqueIndex:idx_cms_page_section_key" json:"section"`    // "hero", "services", "equipment", "cta", "members"
	ContentKey   string    `gorm:"not null;uniqueIndex:idx_cms_page_section_key" json:"contentKey"` // e.g. "hero_title", "service_1_title"
	ContentType  string    `gorm:"not null;default:text" json:"contentType"`                        // "text", "image", "html"
	ContentValue string    `gorm:"type:text;not null" json:"contentValue"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CmsMedia records uploaded image paths keyed by (page, section, assetKey).
type CmsMedia struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Page      string    `gorm:"not null;uniqueIndex:idx_cms_page_section_asset" json:"page"`
	Section   string    `gorm:"not null;uniqueIndex:idx_cms_page_section_asset" json:"section"`
	AssetKey  string    `gorm:"not null;uniqueIndex:idx_cms_page_section_asset" json:"assetKey"`
	FilePath  string    `gorm:"not null" json:"filePath"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (CmsMedia) TableName() string {
	return "cms_media"
}
