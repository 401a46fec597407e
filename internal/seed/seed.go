package seed

import (
	"fmt"
	"log"

	"campuschat/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Faculties are the Baku State University faculties demo students are spread across.
var Faculties = []string{
	"Mexanika-riyaziyyat", "Tətbiqi riyaziyyat və kibernetika", "Fizika", "Kimya",
	"Biologiya", "Ekologiya və torpaqşünaslıq", "Coğrafiya", "Geologiya",
	"Filologiya", "Tarix", "Beynəlxalq münasibətlər və iqtisadiyyat", "Hüquq",
	"Jurnalistika", "İnformasiya və sənəd menecmenti", "Şərqşünaslıq", "Sosial elmlər və psixologiya",
}

// Options configures a seeding run.
type Options struct {
	NumUsers    int
	NumBlocks   int
	ShouldClean bool
	// ReportedUsers is how many students get enough reports to reach the moderation queue.
	ReportedUsers int
	Factory       FactoryOptions
}

// Result counts what a run created.
type Result struct {
	Users   int
	Blocks  int
	Reports int
}

// Seed populates the database with demo students and moderation edges.
func Seed(db *gorm.DB, opts Options) (*Result, error) {
	log.Printf("🌱 Seeding %d students across %d faculties...", opts.NumUsers, len(Faculties))

	if opts.ShouldClean && !opts.Factory.DryRun {
		if err := ClearData(db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	f, err := NewFactory(db, opts.Factory)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser(Faculties[i%len(Faculties)])
		if err != nil {
			log.Printf("Failed to create student: %v", err)
			continue
		}
		users = append(users, u)
		if (i+1)%100 == 0 {
			log.Printf("Created %d students...", i+1)
		}
	}
	res.Users = len(users)
	log.Printf("✓ %d students created", res.Users)
	if len(users) < 2 {
		return res, nil
	}

	seen := make(map[[2]uint]bool)
	for i := 0; i < opts.NumBlocks; i++ {
		a := users[gofakeit.Number(0, len(users)-1)]
		b := users[gofakeit.Number(0, len(users)-1)]
		edge := [2]uint{a.ID, b.ID}
		if a.ID == b.ID || seen[edge] {
			continue
		}
		seen[edge] = true
		if err := f.CreateBlock(a, b); err != nil {
			return res, fmt.Errorf("create block: %w", err)
		}
		res.Blocks++
	}
	log.Printf("✓ %d blocks created", res.Blocks)

	for i := 0; i < opts.ReportedUsers && i+1 < len(users); i++ {
		reported, reporter := users[i], users[len(users)-1-i]
		if reported.ID == reporter.ID {
			continue
		}
		if err := f.CreateReports(reporter, reported, models.ReportThreshold); err != nil {
			return res, fmt.Errorf("create reports: %w", err)
		}
		res.Reports += models.ReportThreshold
	}
	log.Printf("✓ %d reports filed", res.Reports)

	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

// ClearData removes students and moderation edges. Admins and settings are kept.
func ClearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	return db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.UserReport{}, &models.UserBlock{}, &models.User{}} {
			if err := all.Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DemoSettings fills the daily topic and filter words when they are still empty.
func DemoSettings(db *gorm.DB) error {
	demo := map[string]string{
		models.SettingDailyTopic:  "İmtahan sessiyasına necə hazırlaşırsınız?",
		models.SettingFilterWords: "axmaq,səfeh",
	}
	for key, value := range demo {
		err := db.Model(&models.Setting{}).
			Where("key = ? AND (value = '' OR value IS NULL)", key).
			Update("value", value).Error
		if err != nil {
			return fmt.Errorf("demo setting %s: %w", key, err)
		}
	}
	return nil
}
