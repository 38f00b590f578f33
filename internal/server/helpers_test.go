package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	app := fiber.New()

	var got Pagination
	app.Get("/items", func(c *fiber.Ctx) error {
		got = parsePagination(c)
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, defaultPageLimit},
		{"explicit values", "?page=3&limit=50", 3, 50},
		{"zero page clamps to first", "?page=0", 1, defaultPageLimit},
		{"negative limit falls back", "?limit=-5", 1, defaultPageLimit},
		{"limit capped at max", "?limit=5000", 1, maxPageLimit},
		{"garbage falls back", "?page=abc&limit=xyz", 1, defaultPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/items"+tt.query, nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestParseID(t *testing.T) {
	srv := &Server{}
	app := fiber.New()

	app.Get("/things/:id", func(c *fiber.Ctx) error {
		id, err := srv.parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	t.Run("valid id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/42", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/abc", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("zero id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/things/0", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}
