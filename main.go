package main

import (
	"log"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"leflow/admin"
	"leflow/analytics"
	"leflow/auth"
	"leflow/cms"
	"leflow/common"
	"leflow/database"
	"leflow/email"
	"leflow/giveaway"
	"leflow/site"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if err := database.SeedCmsContent(db); err != nil {
		log.Fatal("Failed to seed CMS content:", err)
	}

	analyticsModule := analytics.NewAnalyticsModule(common.ConnectAnalyticsDb())

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("leflow-session", store))

	mailer := email.NewEmailService(email.ConfigFromEnv())

	authModule := auth.NewAuthModule(db, mailer)
	authModule.RegisterRoutes(router)

	giveawayModule := giveaway.NewGiveawayModule(db, authModule, analyticsModule)
	giveawayModule.RegisterRoutes(router)

	cmsModule := cms.NewCmsModule(db, authModule)
	cmsModule.RegisterRoutes(router)

	adminModule := admin.NewAdminModule(db, authModule, analyticsModule, cmsModule)
	adminModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, authModule, mailer)
	siteModule.RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
