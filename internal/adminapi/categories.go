package adminapi

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talkincode/catalog/internal/repository"
	"github.com/talkincode/catalog/internal/webserver"
)

type categoryHandler struct {
	categories repository.CategoryRepository
}

// registerCategoryRoutes registers the read-only category listing
func registerCategoryRoutes(s *webserver.AdminServer, h *categoryHandler) {
	s.ApiGET("/categories", h.listCategories)
}

func (h *categoryHandler) listCategories(c echo.Context) error {
	categories, err := h.categories.List(c.Request().Context())
	if err != nil {
		zap.L().Error("list categories", zap.Error(err))
		return fail(c, StatusError, "Can't get category from db", nil)
	}
	return ok(c, categories)
}
