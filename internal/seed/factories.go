// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"campuschat/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "parol1234"

// FactoryOptions tunes how entities are built.
type FactoryOptions struct {
	// SkipBcrypt hashes DefaultPassword at bcrypt.MinCost.
	SkipBcrypt bool
	// DryRun builds entities with synthetic ids and never touches the database.
	DryRun bool
	// EmailDomain is appended to generated addresses, e.g. "@bsu.edu.az".
	EmailDomain string
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   FactoryOptions
	hash   string
	nextID atomic.Uint32
	seq    atomic.Uint32
	// phoneBase keeps phones from colliding with an earlier run's users.
	phoneBase uint32
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts FactoryOptions) (*Factory, error) {
	if opts.EmailDomain == "" {
		opts.EmailDomain = "@bsu.edu.az"
	}
	cost := bcrypt.DefaultCost
	if opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, err
	}
	f := &Factory{db: db, opts: opts, hash: string(hash), phoneBase: uint32(gofakeit.Number(0, 7_999_999))}
	f.nextID.Store(1000)
	return f, nil
}

var (
	femaleNames = []string{"Aysel", "Nigar", "Leyla", "Günay", "Səbinə", "Aytən", "Nərmin", "Fidan", "Zəhra", "Lalə"}
	maleNames   = []string{"Murad", "Elvin", "Rəşad", "Orxan", "Tural", "Kamran", "Nicat", "Fərid", "Emil", "Ceyhun"}
	lastNames = []string{
		"Məmmədov", "Əliyev", "Həsənov", "Hüseynov", "Quliyev", "İsmayılov", "Rzayev",
		"Abbasov", "Nəsirov", "Cəfərov", "Kərimov", "Süleymanov", "Vəliyev", "Babayev",
	}
	degrees = []string{"bakalavr", "magistr", "doktorant"}
	avatars = []string{"👤", "🦉", "📚", "🎓", "🧪", "🌍", "⚖️", "🎨", "🧠", "🚀"}
)

var asciiFold = strings.NewReplacer(
	"ə", "e", "Ə", "e", "ş", "s", "Ş", "s", "ç", "c", "Ç", "c", "ğ", "g", "Ğ", "g",
	"ı", "i", "İ", "i", "ö", "o", "Ö", "o", "ü", "u", "Ü", "u",
)

// BuildUser returns an unsaved active student of faculty.
func (f *Factory) BuildUser(faculty string, overrides ...func(*models.User)) *models.User {
	n := f.seq.Add(1)
	last := gofakeit.RandomString(lastNames)
	first := gofakeit.RandomString(maleNames)
	if gofakeit.Bool() {
		first = gofakeit.RandomString(femaleNames)
		last += "a"
	}
	local := strings.ToLower(asciiFold.Replace(first + "." + last))

	u := &models.User{
		Email:    fmt.Sprintf("%s%d%s", local, n, f.opts.EmailDomain),
		Phone:    fmt.Sprintf("+99455%07d", f.phoneBase+n),
		Password: f.hash,
		FullName: first + " " + last,
		Faculty:  faculty,
		Degree:   gofakeit.RandomString(degrees),
		Course:   gofakeit.Number(1, 4),
		Avatar:   gofakeit.RandomString(avatars),
		IsActive: true,
	}
	for _, override := range overrides {
		override(u)
	}
	return u
}

// CreateUser builds and persists a student.
func (f *Factory) CreateUser(faculty string, overrides ...func(*models.User)) (*models.User, error) {
	u := f.BuildUser(faculty, overrides...)
	if f.opts.DryRun {
		u.ID = uint(f.nextID.Add(1))
		log.Printf("[dry-run] CreateUser: %s <%s> %s", u.FullName, u.Email, u.Faculty)
		return u, nil
	}
	if err := f.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// CreateBlock records blocker -> blocked.
func (f *Factory) CreateBlock(blocker, blocked *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.UserBlock{BlockerID: blocker.ID, BlockedID: blocked.ID}).Error
}

// CreateReports files n reports against reported, all by reporter.
func (f *Factory) CreateReports(reporter, reported *models.User, n int) error {
	if f.opts.DryRun || n <= 0 {
		return nil
	}
	rows := make([]models.UserReport, n)
	for i := range rows {
		rows[i] = models.UserReport{ReporterID: reporter.ID, ReportedID: reported.ID}
	}
	return f.db.Create(&rows).Error
}

// CreateSubAdmin persists a non-super admin with DefaultPassword.
func (f *Factory) CreateSubAdmin(username string) (*models.Admin, error) {
	a := &models.Admin{Username: username, Password: f.hash}
	if f.opts.DryRun {
		a.ID = uint(f.nextID.Add(1))
		return a, nil
	}
	if err := f.db.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}
