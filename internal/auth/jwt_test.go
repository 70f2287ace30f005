package auth_test

import (
	"testing"
	"time"

	"taskboard/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateAndParseToken(t *testing.T) {
	userID := uuid.New().String()

	token, err := auth.GenerateToken(userID, "test-secret", time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed, err := auth.ParseToken(token, "test-secret")
	assert.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := auth.GenerateToken(uuid.New().String(), "test-secret", time.Hour)
	assert.NoError(t, err)

	_, err = auth.ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	token, err := auth.GenerateToken(uuid.New().String(), "test-secret", -time.Minute)
	assert.NoError(t, err)

	_, err = auth.ParseToken(token, "test-secret")
	assert.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := auth.ParseToken("not.a.token", "test-secret")
	assert.Error(t, err)
}
