package adminapi

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talkincode/catalog/internal/imagestore"
	"github.com/talkincode/catalog/internal/repository"
	"github.com/talkincode/catalog/internal/webserver"
)

const imageField = "image"

type productPayload struct {
	Name        *string `form:"name" validate:"required,min=1,max=200"`
	Description *string `form:"description" validate:"omitempty"`
	CategoryID  *string `form:"category_id" validate:"required,number"`
	Price       *string `form:"price" validate:"required,money"`
}

type productUpdatePayload struct {
	Name        *string `form:"name" validate:"omitempty,min=1,max=200"`
	Description *string `form:"description" validate:"omitempty"`
	CategoryID  *string `form:"category_id" validate:"omitempty,number"`
	Price       *string `form:"price" validate:"omitempty,money"`
	Qty         *string `form:"qty" validate:"required,numeric"`
}

type productHandler struct {
	products repository.ProductRepository
	images   *imagestore.Store
}

// registerProductRoutes registers the product endpoints
func registerProductRoutes(s *webserver.AdminServer, h *productHandler) {
	s.ApiGET("/products", h.getProduct)
	s.ApiPOST("/products", h.createProduct)
	s.ApiPUT("/products/:id", h.updateProduct)
	s.ApiDELETE("/products/:id", h.deleteProduct)

	// widget views answer with the bare page
	s.ApiGET("/products/search", h.searchProduct)
	s.ApiGET("/products/sorted/name", h.sortProductByName)
	s.ApiGET("/products/sorted/updated", h.sortProductByUpdate)
}

func (h *productHandler) getProduct(c echo.Context) error {
	q := repository.ListQuery{
		Search:    c.QueryParam("search"),
		Sort:      strings.TrimSpace(c.QueryParam("sort")),
		Direction: strings.ToLower(strings.TrimSpace(c.QueryParam("mode"))),
		Page:      parsePage(c),
		Limit:     parseLimit(c, repository.DefaultPageSize),
	}
	if q.Sort == "" {
		q.Sort = repository.DefaultSort
	}
	if q.Direction != "desc" {
		q.Direction = "asc"
	}

	page, err := h.products.List(c.Request().Context(), q)
	if err != nil {
		zap.L().Error("list products", zap.Error(err))
		return fail(c, StatusError, "Can't get product from db", nil)
	}
	return ok(c, page)
}

// imageFile returns the uploaded file under the image key. hasFiles reports
// whether the request carried any file at all.
func imageFile(c echo.Context) (fh *multipart.FileHeader, hasFiles bool) {
	form, err := c.MultipartForm()
	if err != nil || form == nil || len(form.File) == 0 {
		return nil, false
	}
	files := form.File[imageField]
	if len(files) == 0 {
		return nil, true
	}
	return files[0], true
}

// ingest stores fh and answers the client itself when it fails
func (h *productHandler) ingest(c echo.Context, fh *multipart.FileHeader) (string, error) {
	name, err := h.images.Ingest(c.Request().Context(), imagestore.FromMultipart(fh))
	if err == nil {
		return name, nil
	}
	var unsupported *imagestore.UnsupportedMediaTypeError
	if errors.As(err, &unsupported) {
		return "", fail(c, StatusNotModified, unsupported.Error(), nil)
	}
	zap.L().Error("store product image", zap.Error(err))
	return "", fail(c, StatusError, imagestore.ErrStorageWriteFailed.Error(), nil)
}

// discard removes an image that no product references any more
func (h *productHandler) discard(name string) {
	if err := h.images.Remove(name); err != nil {
		zap.L().Warn("remove product image", zap.String("image", name), zap.Error(err))
	}
}

func (h *productHandler) createProduct(c echo.Context) error {
	var payload productPayload
	if err := bindForm(c, &payload); err != nil {
		return fail(c, StatusNotModified, "Validation error", validationErrors(err))
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, StatusNotModified, "Validation error", validationErrors(err))
	}

	categoryID, err := parseInt(*payload.CategoryID)
	if err != nil {
		return fail(c, StatusNotModified, "Validation error", []FieldError{{Field: "category_id", Tag: "int", Message: err.Error()}})
	}

	fh, hasFiles := imageFile(c)
	if !hasFiles {
		return fail(c, StatusNotModified, "No image choosen", nil)
	}
	if fh == nil {
		return fail(c, StatusNotModified, "Can't find key image", nil)
	}

	image, err := h.ingest(c, fh)
	if image == "" {
		return err
	}

	in := repository.NewProduct{
		Name:       *payload.Name,
		Image:      image,
		CategoryID: categoryID,
		Price:      decimal.RequireFromString(*payload.Price),
	}
	if payload.Description != nil {
		in.Description = *payload.Description
	}
	p, err := h.products.Create(c.Request().Context(), in)
	if err != nil {
		zap.L().Error("create product", zap.Error(err))
		h.discard(image)
		return fail(c, StatusError, "Can't add product to db", nil)
	}
	return ok(c, p)
}

func (h *productHandler) updateProduct(c echo.Context) error {
	var payload productUpdatePayload
	if err := bindForm(c, &payload); err != nil {
		return fail(c, StatusNotModified, "Validation errors", validationErrors(err))
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, StatusNotModified, "Validation errors", validationErrors(err))
	}
	if payload.Name != nil && *payload.Name == "" {
		return fail(c, StatusNotModified, "Validation errors", []FieldError{{Field: "name", Tag: "min", Message: "name can't be blank"}})
	}
	qty64, err := parseInt(*payload.Qty)
	if err != nil {
		return fail(c, StatusNotModified, "Validation errors", []FieldError{{Field: "qty", Tag: "int", Message: err.Error()}})
	}
	qty := int(qty64)
	if qty < 0 {
		return fail(c, StatusNotModified, "quantity can't be negative", true)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, StatusError, "Can't update product to db", nil)
	}

	patch := repository.ProductPatch{Name: payload.Name, Description: payload.Description, Qty: &qty}
	if nonEmpty(payload.CategoryID) {
		categoryID, err := parseInt(*payload.CategoryID)
		if err != nil {
			return fail(c, StatusNotModified, "Validation errors", []FieldError{{Field: "category_id", Tag: "int", Message: err.Error()}})
		}
		patch.CategoryID = &categoryID
	}
	if nonEmpty(payload.Price) {
		price := decimal.RequireFromString(*payload.Price)
		patch.Price = &price
	}

	var image string
	if fh, _ := imageFile(c); fh != nil {
		if image, err = h.ingest(c, fh); image == "" {
			return err
		}
		patch.Image = &image
	}

	previous, err := h.products.Update(c.Request().Context(), id, patch)
	if err != nil {
		zap.L().Error("update product", zap.Int64("id", id), zap.Error(err))
		if image != "" {
			h.discard(image)
		}
		return fail(c, StatusError, "Can't update product to db", nil)
	}
	if image != "" && previous != "" && previous != image {
		h.discard(previous)
	}
	return ok(c, nil)
}

func (h *productHandler) deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, StatusError, "Can't delete product from db", nil)
	}
	image, err := h.products.Delete(c.Request().Context(), id)
	if err != nil {
		zap.L().Error("delete product", zap.Int64("id", id), zap.Error(err))
		return fail(c, StatusError, "Can't delete product from db", nil)
	}
	h.discard(image)
	return ok(c, nil)
}

func (h *productHandler) searchProduct(c echo.Context) error {
	page, err := h.products.SearchByKeyword(c.Request().Context(), c.FormValue("keyword"), parsePage(c))
	if err != nil {
		zap.L().Error("search products", zap.Error(err))
		return fail(c, StatusError, "Can't get product from db", nil)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *productHandler) sortProductByName(c echo.Context) error {
	return h.sortedBy(c, "name")
}

func (h *productHandler) sortProductByUpdate(c echo.Context) error {
	return h.sortedBy(c, "updated_at")
}

func (h *productHandler) sortedBy(c echo.Context, field string) error {
	page, err := h.products.ListSortedBy(c.Request().Context(), field, parsePage(c))
	if err != nil {
		zap.L().Error("sort products", zap.String("field", field), zap.Error(err))
		return fail(c, StatusError, "Can't get product from db", nil)
	}
	return c.JSON(http.StatusOK, page)
}
