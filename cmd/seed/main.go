package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/database"
	"github.com/userhub/backend/internal/models"
)

// Seeds demo accounts for local development. Refuses to run against a
// database that already has users.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Activity{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("Database migrated successfully")

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		log.Fatal("Failed to count users:", err)
	}
	if count > 0 {
		fmt.Println("Users already exist, seed skipped")
		return
	}

	now := time.Now()
	stale := now.Add(-90 * 24 * time.Hour)

	seeds := []struct {
		name     string
		email    string
		password string
		role     string
		lastSeen *time.Time
	}{
		{"Admin", "admin@userhub.local", "admin123", models.RoleAdmin, &now},
		{"Manager", "manager@userhub.local", "manager123", models.RoleManager, &now},
		{"Demo User", "user@userhub.local", "user123", models.RoleUser, &now},
		{"Dormant User", "dormant@userhub.local", "dormant123", models.RoleUser, &stale},
	}

	for _, s := range seeds {
		user := models.User{
			Name:        s.name,
			Email:       s.email,
			Role:        s.role,
			IsActive:    true,
			LastLoginAt: s.lastSeen,
		}
		if err := user.SetPassword(s.password); err != nil {
			log.Fatal("Failed to hash password:", err)
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatal("Failed to seed user:", err)
		}
		fmt.Printf("Seeded %s (%s / %s)\n", s.role, s.email, s.password)
	}

	fmt.Println("Seed completed")
}
