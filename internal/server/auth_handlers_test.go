package server

import (
	"context"
	"net/http"
	"testing"

	"campuschat/internal/middleware"
	"campuschat/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user"`
	Admin map[string]any `json:"admin"`
	Error string         `json:"error"`
	Code  string         `json:"code"`
}

func registration() service.RegisterInput {
	return service.RegisterInput{
		Email:    "nigar.h@bsu.edu.az",
		Phone:    "+994551112233",
		Password: "kitabxana1",
		FullName: "Nigar Həsənova",
		Faculty:  "Riyaziyyat",
		Degree:   "bakalavr",
		Course:   3,
	}
}

func TestAuth_VerificationFlow(t *testing.T) {
	env := newTestEnv(t)

	var questions []map[string]any
	status := env.do(t, http.MethodGet, "/api/auth/verification-questions", "", nil, &questions)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, questions, service.QuestionsPerChallenge)
	for _, q := range questions {
		assert.Contains(t, q, "id")
		assert.Contains(t, q, "question")
		assert.Len(t, q, 2, "answers never leave the server")
	}

	var result service.VerificationResult
	status = env.do(t, http.MethodPost, "/api/auth/verify-answers", "", map[string]any{
		"answers": []service.VerificationAnswer{{QuestionID: 9, Answer: "1"}, {QuestionID: 13, Answer: " 2 "}},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, result.Passed)
}

func TestAuth_RegisterLoginAndSession(t *testing.T) {
	env := newTestEnv(t)

	var reg authResponse
	status := env.do(t, http.MethodPost, "/api/auth/register", "", registration(), &reg)
	require.Equal(t, http.StatusCreated, status, reg.Error)
	require.NotEmpty(t, reg.Token)
	assert.NotContains(t, reg.User, "password")

	var dup authResponse
	status = env.do(t, http.MethodPost, "/api/auth/register", "", registration(), &dup)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", dup.Code)

	bad := registration()
	bad.Email = "nigar@gmail.com"
	status = env.do(t, http.MethodPost, "/api/auth/register", "", bad, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var login authResponse
	status = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nigar.h@bsu.edu.az", "password": "kitabxana1",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, login.Token)

	status = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nigar.h@bsu.edu.az", "password": "wrong-pass1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var session map[string]any
	status = env.do(t, http.MethodGet, "/api/auth/check-session", login.Token, nil, &session)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, middleware.RoleUser, session["role"])
}

func TestAuth_LoginRejectsDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.srv.authService.Register(ctx, registration())
	require.NoError(t, err)
	_, err = env.srv.adminService.ToggleUserStatus(ctx, u.ID)
	require.NoError(t, err)

	status := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nigar.h@bsu.edu.az", "password": "kitabxana1",
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// an old token no longer passes the session check
	status = env.do(t, http.MethodGet, "/api/auth/check-session", env.userToken(t, u.ID), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	var reg authResponse
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/auth/register", "", registration(), &reg))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/logout", reg.Token, nil, nil))

	p, err := middleware.ParseToken(testSecret, reg.Token)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(middleware.RevokedTokenKey(p.JTI)))
	assert.Positive(t, env.mr.TTL(middleware.RevokedTokenKey(p.JTI)))

	status := env.do(t, http.MethodGet, "/api/auth/check-session", reg.Token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_AdminLogin(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.authService.EnsureSuperAdmin(context.Background(), "520", "boot-pass-1"))

	var login authResponse
	status := env.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{
		"username": "520", "password": "boot-pass-1",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, login.Admin["isSuperAdmin"])

	p, err := middleware.ParseToken(testSecret, login.Token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
	assert.True(t, p.Super)

	var session map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/auth/check-session", login.Token, nil, &session))
	assert.Equal(t, middleware.RoleAdmin, session["role"])

	status = env.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{
		"username": "520", "password": "nope-nope-1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuth_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/auth/login", "/api/auth/register", "/api/auth/admin/login"} {
		req := env.do(t, http.MethodPost, path, "", "not an object", nil)
		assert.Equal(t, http.StatusBadRequest, req, path)
	}
}
