package database

import (
	"log"

	"leflow/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Vote{},
		&models.Comment{},
		&models.Setting{},
		&models.ContactSubmission{},
		&models.CmsContent{},
		&models.CmsMedia{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}
