package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPairKey_Symmetric(t *testing.T) {
	for _, tc := range [][2]uint{{1, 2}, {9, 3}, {5, 5}, {0, 7}} {
		a, b := tc[0], tc[1]
		assert.Equal(t, NewPairKey(a, b), NewPairKey(b, a))
		k := NewPairKey(a, b)
		assert.LessOrEqual(t, k.Low, k.High)
		assert.True(t, k.Has(a))
		assert.True(t, k.Has(b))
	}
	// numeric order, not lexical: "10" < "9" as strings
	assert.Equal(t, "9_10", NewPairKey(10, 9).String())
}

func TestRoom_IsComparableKey(t *testing.T) {
	m := map[Room]int{}
	m[FacultyRoom("Fizika")]++
	m[FacultyRoom("Fizika")]++
	m[PrivateRoom(NewPairKey(2, 1))]++
	m[PrivateRoom(NewPairKey(1, 2))]++

	assert.Len(t, m, 2)
	assert.Equal(t, "faculty:Fizika", FacultyRoom("Fizika").String())
	assert.Equal(t, "private:1_2", PrivateRoom(NewPairKey(2, 1)).String())
}

func TestMessage_MarshalJSON(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sender := SenderProfile{FullName: "Leyla Aliyeva", Faculty: "Fizika", Degree: "bakalavr", Course: 2, Avatar: "🦊"}

	t.Run("group", func(t *testing.T) {
		b, err := json.Marshal(Message{ID: 5, Kind: KindGroup, SenderID: 3, Sender: sender, Body: "salam", Timestamp: ts})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":5,"userId":3,"fullName":"Leyla Aliyeva","faculty":"Fizika","degree":"bakalavr","course":2,"avatar":"🦊","message":"salam","timestamp":"2026-03-01T10:00:00Z"}`, string(b))
	})

	t.Run("private", func(t *testing.T) {
		b, err := json.Marshal(Message{ID: 6, Kind: KindPrivate, SenderID: 3, ReceiverID: 4, Sender: sender, Body: "hi", Timestamp: ts})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":6,"senderId":3,"receiverId":4,"senderName":"Leyla Aliyeva","avatar":"🦊","message":"hi","timestamp":"2026-03-01T10:00:00Z"}`, string(b))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("x"), fiber.StatusBadRequest},
		{NewNotFoundError("User", 1), fiber.StatusNotFound},
		{NewUnauthorizedError("x"), fiber.StatusUnauthorized},
		{NewForbiddenError("x"), fiber.StatusForbidden},
		{NewBlockedError(), fiber.StatusForbidden},
		{NewConflictError("x"), fiber.StatusConflict},
		{NewInternalError(errors.New("db down")), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewValidationError("x")), fiber.StatusBadRequest},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
	assert.ErrorIs(t, NewBlockedError(), ErrBlocked)
}

func TestRespondWithError_HidesInternalDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("pq: password authentication failed")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Empty(t, body.Details)
}
