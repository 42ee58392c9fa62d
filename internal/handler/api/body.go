package api

import (
	"io"
	"net/http"

	"VendorLink/internal/contracts"
	xhttp "VendorLink/pkg/http"

	"github.com/labstack/echo/v4"
)

// maxBody bounds every JSON payload read by these handlers.
const maxBody = 4 << 20

// readPayload decodes the request body into the untyped form the validators read.
// It writes the 400 itself and returns ok=false on failure.
func readPayload(c echo.Context) (any, bool, error) {
	b, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBody))
	if err != nil {
		return nil, false, xhttp.ContractErrorResponse(c, http.StatusBadRequest, "unreadable body", nil)
	}
	v, err := contracts.Decode(b)
	if err != nil {
		return nil, false, xhttp.ContractErrorResponse(c, http.StatusBadRequest, "invalid JSON",
			contracts.ValidationErrors{{Message: err.Error()}})
	}
	return v, true, nil
}

func validationFailed(c echo.Context, errs contracts.ValidationErrors) error {
	return xhttp.ContractErrorResponse(c, http.StatusBadRequest, "validation failed", errs)
}
