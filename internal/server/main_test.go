package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"terrace/internal/config"
	"terrace/internal/database"
	"terrace/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "server-test-secret-123456789012345678901234"

var (
	setupOnce sync.Once
	testSrv   *Server
	testApp   *fiber.App
	testDB    *gorm.DB
)

// setupServer builds one server over an in-memory sqlite DB for the whole
// test binary; the Prometheus HTTP middleware registers collectors globally
// and cannot be constructed twice.
func setupServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()

	setupOnce.Do(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
			t.Fatalf("migrate sqlite: %v", err)
		}

		cfg := &config.Config{
			Port:               "0",
			JWTSecret:          testJWTSecret,
			Env:                "test",
			BattleSweepSeconds: 30,
		}

		srv, err := NewServerWithDeps(cfg, db, nil)
		if err != nil {
			t.Fatalf("build server: %v", err)
		}

		app := fiber.New()
		srv.SetupRoutes(app)

		testSrv, testApp, testDB = srv, app, db
	})

	return testSrv, testApp, testDB
}

var userSeq uint

func makeUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{Username: fmt.Sprintf("fan_%d_%d", userSeq, time.Now().UnixNano())}
	require.NoError(t, db.Create(user).Error)
	return user
}

func makeMatch(t *testing.T, db *gorm.DB) *models.Match {
	t.Helper()
	match := &models.Match{
		MatchID:  fmt.Sprintf("match-%d", time.Now().UnixNano()),
		HomeTeam: "Chelsea",
		AwayTeam: "Fulham",
		Status:   "live",
	}
	require.NoError(t, db.Create(match).Error)
	return match
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func bearerToken(t *testing.T, userID uint) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, userID))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}
