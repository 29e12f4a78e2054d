package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateAndParseJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "utils-test-secret")
	id := primitive.NewObjectID()

	token, err := GenerateJWT(id, "provider")
	require.NoError(t, err)

	claims, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), claims.ID)
	assert.Equal(t, "provider", claims.Role)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestParseJWTRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "utils-test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		ID: primitive.NewObjectID().Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("utils-test-secret"))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{ID: primitive.NewObjectID().Hex()})
	foreignToken, err := foreign.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ID: primitive.NewObjectID().Hex()})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"wrong secret": foreignToken,
		"alg none":     noneToken,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestGenerateJWTWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := GenerateJWT(primitive.NewObjectID(), "tourist")
	assert.Error(t, err)
}

func TestGenerateSecureOTP(t *testing.T) {
	code, err := GenerateSecureOTP(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestGetUserIDFromContext(t *testing.T) {
	id := primitive.NewObjectID()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, id.Hex()))

	rec := httptest.NewRecorder()
	got, err := GetUserIDFromContext(rec, req)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	rec = httptest.NewRecorder()
	_, err = GetUserIDFromContext(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetObjectIDFromVars(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()

	_, err := GetObjectIDFromVars(rec, req, "id")

	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid ID format"}`, rec.Body.String())
}

func TestQueryParsing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&minPrice=12.5&limit=x", nil)

	page, err := QueryInt64(req, "page", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page)

	def, err := QueryInt64(req, "missing", 12)
	require.NoError(t, err)
	assert.EqualValues(t, 12, def)

	_, err = QueryInt64(req, "limit", 12)
	assert.Error(t, err)

	minPrice, err := QueryFloat(req, "minPrice")
	require.NoError(t, err)
	require.NotNil(t, minPrice)
	assert.Equal(t, 12.5, *minPrice)

	maxPrice, err := QueryFloat(req, "maxPrice")
	require.NoError(t, err)
	assert.Nil(t, maxPrice)
}
