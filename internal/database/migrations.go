package database

import (
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Appointment{},
		&models.ConsultationSession{},
		&models.ConsultationMessage{},
		&models.ConsultationAnalytics{},
		&models.Notification{},
	)
}

// SeedData inserts development fixtures when the user table is empty. The
// identity subsystem owns user provisioning in production; this only keeps a
// fresh local database usable.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	users := []models.User{
		{
			BaseModel:   models.BaseModel{ID: "11111111-1111-1111-1111-111111111111"},
			DisplayName: "Demo Client",
			Email:       "client@legalbridge.local",
			Role:        models.RoleClient,
		},
		{
			BaseModel:   models.BaseModel{ID: "22222222-2222-2222-2222-222222222222"},
			DisplayName: "Demo Lawyer",
			Email:       "lawyer@legalbridge.local",
			Role:        models.RoleLawyer,
		},
	}

	for _, user := range users {
		if err := db.Where(models.User{Email: user.Email}).Attrs(user).FirstOrCreate(&models.User{}).Error; err != nil {
			return err
		}
	}

	return nil
}
