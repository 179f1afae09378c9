package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmmolins87/NeuronIA-sub001/internal/app"
	"github.com/jmmolins87/NeuronIA-sub001/internal/domain"
)

type handlers struct {
	svcs             Services
	allowNowOverride bool
}

// parseNow reads the optional clock override. It is ignored entirely unless
// the server was started with the override enabled.
func (h *handlers) parseNow(raw string) (*time.Time, error) {
	if raw == "" || !h.allowNowOverride {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewInputError("now", "must be RFC 3339")
	}
	return &t, nil
}

type bookingView struct {
	UID       string     `json:"uid"`
	StartAt   time.Time  `json:"startAt"`
	EndAt     time.Time  `json:"endAt"`
	Timezone  string     `json:"timezone"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Locale    string     `json:"locale,omitempty"`
}

func toBookingView(b domain.Booking) bookingView {
	return bookingView{
		UID:       b.UID,
		StartAt:   b.StartAt,
		EndAt:     b.EndAt,
		Timezone:  b.Timezone,
		Status:    string(b.Status),
		ExpiresAt: b.ExpiresAt,
		Locale:    b.Locale,
	}
}

type slotView struct {
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	Label     string    `json:"label"`
	Available bool      `json:"available"`
}

func (h *handlers) availability(c echo.Context) error {
	now, err := h.parseNow(c.QueryParam("now"))
	if err != nil {
		return err
	}

	slots, err := h.svcs.Availability.Day(c.Request().Context(), app.DayInput{
		Date: c.QueryParam("date"),
		Now:  now,
	})
	if err != nil {
		return err
	}

	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{
			StartAt:   s.StartAt,
			EndAt:     s.EndAt,
			Label:     s.Label,
			Available: s.Available,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"date":  c.QueryParam("date"),
		"slots": out,
	})
}

type reserveRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Locale   string `json:"locale"`
	Now      string `json:"now"`
}

func (h *handlers) reserve(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewInputError("body", "must be valid JSON")
	}
	now, err := h.parseNow(req.Now)
	if err != nil {
		return err
	}

	res, err := h.svcs.Reservation.Reserve(c.Request().Context(), app.ReserveInput{
		Date:     req.Date,
		Time:     req.Time,
		Timezone: req.Timezone,
		Locale:   req.Locale,
		Now:      now,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"booking":      toBookingView(res.Booking),
		"sessionToken": res.SessionToken,
	})
}

type confirmRequest struct {
	Token    string          `json:"token"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	FormData json.RawMessage `json:"formData"`
	ROIData  json.RawMessage `json:"roiData"`
	Now      string          `json:"now"`
}

func (h *handlers) confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewInputError("body", "must be valid JSON")
	}
	now, err := h.parseNow(req.Now)
	if err != nil {
		return err
	}

	res, err := h.svcs.Confirmation.Confirm(c.Request().Context(), app.ConfirmInput{
		Token:    req.Token,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		FormData: req.FormData,
		ROIData:  req.ROIData,
		Now:      now,
	})
	if err != nil {
		// The booking stays confirmed even when the email bounces; the
		// caller still gets the tokens alongside the failure.
		if errors.Is(err, domain.ErrEmailFailed) {
			return c.JSON(http.StatusBadGateway, map[string]any{
				"code":            "email_failed",
				"message":         "the booking was saved but the confirmation email could not be sent",
				"booking":         toBookingView(res.Booking),
				"cancelToken":     res.CancelToken,
				"rescheduleToken": res.RescheduleToken,
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"booking":         toBookingView(res.Booking),
		"cancelToken":     res.CancelToken,
		"rescheduleToken": res.RescheduleToken,
		"created":         res.Created,
	})
}

type tokenRequest struct {
	Token string `json:"token"`
	Now   string `json:"now"`
}

func (h *handlers) cancel(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewInputError("body", "must be valid JSON")
	}
	now, err := h.parseNow(req.Now)
	if err != nil {
		return err
	}

	res, err := h.svcs.Cancellation.Cancel(c.Request().Context(), app.CancelInput{
		Token: req.Token,
		Now:   now,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"booking":   toBookingView(res.Booking),
		"cancelled": res.Cancelled,
	})
}

type rescheduleRequest struct {
	Token string `json:"token"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Now   string `json:"now"`
}

func (h *handlers) reschedule(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewInputError("body", "must be valid JSON")
	}
	now, err := h.parseNow(req.Now)
	if err != nil {
		return err
	}

	res, err := h.svcs.Reschedule.Reschedule(c.Request().Context(), app.RescheduleInput{
		Token: req.Token,
		Date:  req.Date,
		Time:  req.Time,
		Now:   now,
	})
	if err != nil {
		return err
	}

	body := map[string]any{
		"booking": toBookingView(res.Booking),
	}
	if res.RescheduleToken != "" {
		body["rescheduleToken"] = res.RescheduleToken
	}
	return c.JSON(http.StatusOK, body)
}
