// Package adminapi exposes the catalog http api.
package adminapi

import (
	"github.com/talkincode/catalog/internal/app"
	"github.com/talkincode/catalog/internal/webserver"
)

// CatalogContext is what the api handlers need from the application
type CatalogContext interface {
	app.RepositoryProvider
	app.ImageStoreProvider
}

// Init registers all api routes on s
func Init(s *webserver.AdminServer, appCtx CatalogContext) {
	registerProductRoutes(s, &productHandler{
		products: appCtx.ProductRepo(),
		images:   appCtx.ImageStore(),
	})
	registerCategoryRoutes(s, &categoryHandler{
		categories: appCtx.CategoryRepo(),
	})
}
