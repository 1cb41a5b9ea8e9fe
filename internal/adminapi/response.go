package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/talkincode/catalog/internal/repository"
)

const (
	StatusOK          = 200
	StatusNotModified = 304
	StatusError       = 500

	msgOK = "OKE"
)

// Response is the envelope every catalog command answers with. The transport
// status is always 200, Status carries the outcome.
type Response struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data"`
	Errors  interface{} `json:"errors"`
}

// FieldError describes one failed validation rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func emptyData() map[string]interface{} {
	return map[string]interface{}{}
}

func ok(c echo.Context, data interface{}) error {
	if data == nil {
		data = emptyData()
	}
	return c.JSON(http.StatusOK, Response{Message: msgOK, Status: StatusOK, Data: data, Errors: false})
}

// fail answers with a 304 or 500 envelope. errs defaults to true.
func fail(c echo.Context, status int, message string, errs interface{}) error {
	if errs == nil {
		errs = true
	}
	return c.JSON(http.StatusOK, Response{Message: message, Status: status, Data: emptyData(), Errors: errs})
}

func validationErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: fe.Error()})
	}
	return out
}

// bindForm decodes the submitted form fields into a payload tagged with
// `form`. Only keys present in the request are set, trimmed of surrounding
// whitespace.
func bindForm(c echo.Context, out interface{}) error {
	params, err := c.FormParams()
	if err != nil {
		return errors.Wrap(err, "parse form")
	}
	values := make(map[string]interface{}, len(params))
	for k, v := range params {
		if len(v) > 0 {
			values[k] = strings.TrimSpace(v[0])
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(values)
}

// parseInt reads a decimal integer. Leading zeros never switch the base.
func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// parsePage converts the 1-indexed page query value to a 0-indexed page
func parsePage(c echo.Context) int {
	page, err := strconv.Atoi(strings.TrimSpace(c.QueryParam("page")))
	if err != nil || page < 1 {
		return 0
	}
	return page - 1
}

func parseLimit(c echo.Context, def int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.QueryParam("limit")))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > repository.MaxPageSize {
		return repository.MaxPageSize
	}
	return limit
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := parseInt(c.Param(name))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if id <= 0 {
		return 0, errors.Errorf("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

// nonEmpty treats an empty optional form value as absent
func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
