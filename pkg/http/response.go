package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func write(c echo.Context, status int, data, errs interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
		Errors:  errs,
	})
}

// DataResponse writes data with status as both the HTTP and body status.
func DataResponse(c echo.Context, status int, data interface{}) error {
	return write(c, status, data, nil)
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return write(c, http.StatusOK, data, nil)
}

// ListResponse writes rows with their count.
func ListResponse(c echo.Context, rows interface{}, total int) error {
	return write(c, http.StatusOK, &ListData{Rows: rows, Total: total}, nil)
}

// ValidationResponse rejects a request that failed binding or validation.
func ValidationResponse(c echo.Context, errs []ValidationError) error {
	return write(c, http.StatusBadRequest, nil, errs)
}

// AppErrorResponse writes err if it is an *AppError and a generic 500
// otherwise.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError().WithError(err)
	}
	return write(c, appErr.Status, nil, []*AppError{appErr})
}
