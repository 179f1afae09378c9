package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// mapError translates domain sentinels into the wire envelope. Unknown
// errors become opaque 500s.
func mapError(err error) (int, errorBody) {
	var inputErr *domain.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, errorBody{
			Code:    "invalid_input",
			Message: "invalid input",
			Fields:  map[string]string{inputErr.Field: inputErr.Reason},
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Code: "invalid_input", Message: "invalid input"}
	case errors.Is(err, domain.ErrSameDayCutoff):
		return http.StatusBadRequest, errorBody{Code: "same_day_cutoff", Message: "same-day changes are no longer allowed today"}
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone, errorBody{Code: "token_expired", Message: "this link has expired"}
	case errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenUsed):
		return http.StatusBadRequest, errorBody{Code: "token_invalid", Message: "this link is not valid"}
	case errors.Is(err, domain.ErrSlotTaken):
		return http.StatusConflict, errorBody{Code: "slot_taken", Message: "the requested slot is no longer available"}
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "booking not found"}
	case errors.Is(err, domain.ErrEmailFailed):
		return http.StatusBadGateway, errorBody{Code: "email_failed", Message: "the booking was saved but the confirmation email could not be sent"}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal error"}
	}
}

func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code := "internal_error"
			switch echoErr.Code {
			case http.StatusNotFound:
				code = "not_found"
			case http.StatusMethodNotAllowed:
				code = "method_not_allowed"
			case http.StatusBadRequest:
				code = "invalid_input"
			case http.StatusTooManyRequests:
				code = "rate_limited"
			}
			msg, _ := echoErr.Message.(string)
			if msg == "" {
				msg = http.StatusText(echoErr.Code)
			}
			_ = c.JSON(echoErr.Code, errorBody{Code: code, Message: msg})
			return
		}

		status, body := mapError(err)
		if status == http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}
		_ = c.JSON(status, body)
	}
}
