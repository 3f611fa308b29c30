package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Iseelight/interview-backend/internal/config"
	"github.com/Iseelight/interview-backend/internal/service"
)

const testSecret = "jwt-middleware-test-secret"

func testAuthService() *service.AuthService {
	cfg := &config.Config{
		JWTSecret: testSecret,
		JWTExpiry: time.Hour,
	}
	return service.NewAuthService(cfg, nil)
}

func signTestToken(t *testing.T, tokenType service.TokenType) string {
	t.Helper()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType:    tokenType,
		UserID:       7,
		AssessmentID: "f2a9f0d4-3b1c-4a7e-9f1e-0c5b2d8e6a41",
		SessionID:    "9d1f7c2e-5a4b-4e8d-b3a6-7f0e1c9d2b54",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func candidateTestRouter(auth *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireCandidateJWT(auth), func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return r
}

func TestRequireCandidateJWTAcceptsCandidateToken(t *testing.T) {
	auth := testAuthService()
	r := candidateTestRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, service.TokenTypeCandidate))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}

func TestRequireCandidateJWTRejectsMissingToken(t *testing.T) {
	auth := testAuthService()
	r := candidateTestRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireCandidateJWTRejectsGarbageToken(t *testing.T) {
	auth := testAuthService()
	r := candidateTestRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireCandidateJWTRejectsRecruiterToken(t *testing.T) {
	auth := testAuthService()
	r := candidateTestRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, service.TokenTypeRecruiter))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
