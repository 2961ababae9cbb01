package database

import (
	"log"

	"leflow/models"

	"gorm.io/gorm"
)

var defaultCmsContent = []models.CmsContent{
	// Hero section
	{Page: "home", Section: "hero", ContentKey: "title", ContentType: "text", ContentValue: "Studio LeFlow"},
	{Page: "home", Section: "hero", ContentKey: "subtitle", ContentType: "text", ContentValue: "Profesionalna Muzička Produkcija"},
	{Page: "home", Section: "hero", ContentKey: "description", ContentType: "text", ContentValue: "Mix • Master • Instrumentali • Video Produkcija"},

	// Services
	{Page: "home", Section: "services", ContentKey: "service_1_title", ContentType: "text", ContentValue: "Snimanje & Mix/Master"},
	{Page: "home", Section: "services", ContentKey: "service_1_description", ContentType: "text", ContentValue: "Profesionalno snimanje vokala i instrumenata u akustički tretiranom studiju"},
	{Page: "home", Section: "services", ContentKey: "service_2_title", ContentType: "text", ContentValue: "Instrumentali & Gotove Pesme"},
	{Page: "home", Section: "services", ContentKey: "service_2_description", ContentType: "text", ContentValue: "Kreiranje originalnih bitova i kompletna produkcija vaših pesama"},
	{Page: "home", Section: "services", ContentKey: "service_3_title", ContentType: "text", ContentValue: "Video Produkcija"},
	{Page: "home", Section: "services", ContentKey: "service_3_description", ContentType: "text", ContentValue: "Snimanje i editing profesionalnih muzičkih spotova"},

	// CTA section
	{Page: "home", Section: "cta", ContentKey: "title", ContentType: "text", ContentValue: "Spremni za Vašu Sledeću Produkciju?"},
	{Page: "home", Section: "cta", ContentKey: "description", ContentType: "text", ContentValue: "Zakažite besplatnu konsultaciju i razgovarajmo o vašoj muzičkoj viziji"},
}

// SeedCmsContent inserts the default editable copy on first run. A non-empty
// cms_contents table means an editor already touched the CMS, so it is left
// alone.
func SeedCmsContent(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.CmsContent{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	log.Println("Seeding default CMS content...")
	rows := make([]models.CmsContent, len(defaultCmsContent))
	copy(rows, defaultCmsContent)
	if err := db.Create(&rows).Error; err != nil {
		log.Printf("Error seeding CMS content: %v", err)
		return err
	}

	return nil
}
