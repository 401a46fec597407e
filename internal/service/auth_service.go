package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"

	"campuschat/internal/models"
	"campuschat/internal/observability"
	"campuschat/internal/repository"
	"campuschat/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// VerificationQuestion is a campus-knowledge question asked before registration.
type VerificationQuestion struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	answer   string
}

var verificationQuestions = []VerificationQuestion{
	{1, "Mexanika-riyaziyyat fakültəsi hansı korpusda yerləşir?", "3"},
	{2, "Tətbiqi riyaziyyat və kibernetika fakültəsi hansı korpusda yerləşir?", "3"},
	{3, "Fizika fakültəsi hansı korpusda yerləşir?", "əsas"},
	{4, "Kimya fakültəsi hansı korpusda yerləşir?", "əsas"},
	{5, "Biologiya fakültəsi hansı korpusda yerləşir?", "əsas"},
	{6, "Ekologiya və torpaqşünaslıq fakültəsi hansı korpusda yerləşir?", "əsas"},
	{7, "Coğrafiya fakültəsi hansı korpusda yerləşir?", "əsas"},
	{8, "Geologiya fakültəsi hansı korpusda yerləşir?", "əsas"},
	{9, "Filologiya fakültəsi hansı korpusda yerləşir?", "1"},
	{10, "Tarix fakültəsi hansı korpusda yerləşir?", "3"},
	{11, "Beynəlxalq münasibətlər və iqtisadiyyat fakültəsi hansı korpusda yerləşir?", "1"},
	{12, "Hüquq fakültəsi hansı korpusda yerləşir?", "1"},
	{13, "Jurnalistika fakültəsi hansı korpusda yerləşir?", "2"},
	{14, "İnformasiya və sənəd menecmenti fakültəsi hansı korpusda yerləşir?", "2"},
	{15, "Şərqşünaslıq fakültəsi hansı korpusda yerləşir?", "2"},
	{16, "Sosial elmlər və psixologiya fakültəsi hansı korpusda yerləşir?", "2"},
}

// Verification tuning.
const (
	QuestionsPerChallenge = 3
	RequiredCorrect       = 2
)

// VerificationAnswer is one submitted answer, keyed by question id.
type VerificationAnswer struct {
	QuestionID int    `json:"questionId"`
	Answer     string `json:"answer"`
}

// VerificationResult reports how a set of answers scored.
type VerificationResult struct {
	Passed       bool `json:"passed"`
	CorrectCount int  `json:"correctCount"`
	Total        int  `json:"total"`
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Faculty  string `json:"faculty"`
	Degree   string `json:"degree"`
	Course   int    `json:"course"`
	Avatar   string `json:"avatar"`
}

// AuthService checks credentials for students and admins. Token minting is
// left to the HTTP layer.
type AuthService struct {
	users       repository.UserRepository
	admins      repository.AdminRepository
	emailDomain string
	cost        int
}

func NewAuthService(users repository.UserRepository, admins repository.AdminRepository, emailDomain string) *AuthService {
	return &AuthService{users: users, admins: admins, emailDomain: emailDomain, cost: bcrypt.DefaultCost}
}

// VerificationQuestions returns a random selection of questions, without answers.
func (s *AuthService) VerificationQuestions() []VerificationQuestion {
	out := make([]VerificationQuestion, 0, QuestionsPerChallenge)
	for _, i := range rand.Perm(len(verificationQuestions))[:QuestionsPerChallenge] {
		q := verificationQuestions[i]
		out = append(out, VerificationQuestion{ID: q.ID, Question: q.Question})
	}
	return out
}

// VerifyAnswers scores answers case-insensitively. Unknown question ids score zero.
func (s *AuthService) VerifyAnswers(answers []VerificationAnswer) VerificationResult {
	correct := 0
	for _, a := range answers {
		for _, q := range verificationQuestions {
			if q.ID == a.QuestionID && strings.EqualFold(q.answer, strings.TrimSpace(a.Answer)) {
				correct++
				break
			}
		}
	}
	return VerificationResult{Passed: correct >= RequiredCorrect, CorrectCount: correct, Total: len(answers)}
}

// Register validates the form and creates an active student account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Faculty = strings.TrimSpace(in.Faculty)

	if err := validation.ValidateEmail(in.Email, s.emailDomain); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateCourse(in.Course); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateFullName(in.FullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Faculty == "" || strings.TrimSpace(in.Degree) == "" {
		return nil, models.NewValidationError("faculty and degree are required")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	emailTaken, phoneTaken, err := s.users.ExistsByEmailOrPhone(ctx, in.Email, in.Phone)
	if err != nil {
		return nil, err
	}
	if emailTaken || phoneTaken {
		return nil, models.NewConflictError("email or phone is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:    in.Email,
		Phone:    in.Phone,
		Password: string(hash),
		FullName: strings.TrimSpace(in.FullName),
		Faculty:  in.Faculty,
		Degree:   strings.TrimSpace(in.Degree),
		Course:   in.Course,
		Avatar:   in.Avatar,
		IsActive: true,
	}
	if user.Avatar == "" {
		user.Avatar = "👤"
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks a student's credentials. Deactivated accounts are refused with
// FORBIDDEN even when the password is right.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if !user.IsActive {
		return nil, models.NewForbiddenError("Account is deactivated")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

// AdminLogin checks an administrator's credentials.
func (s *AuthService) AdminLogin(ctx context.Context, username, password string) (*models.Admin, error) {
	admin, err := s.admins.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return admin, nil
}

// EnsureSuperAdmin creates the super admin account on first boot. An existing
// super admin is left as is, so a changed password in config does not
// overwrite one set through the database.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, username, password string) error {
	exists, err := s.admins.HasSuperAdmin(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if password == "" {
		return errors.New("no super admin exists and SUPER_ADMIN_PASSWORD is empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	if err := s.admins.Create(ctx, &models.Admin{Username: username, Password: string(hash), IsSuperAdmin: true}); err != nil {
		return err
	}
	observability.GlobalLogger.InfoContext(ctx, "super admin created", slog.String("username", username))
	return nil
}
