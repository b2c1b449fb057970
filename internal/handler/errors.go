package handler

import (
    "context"
    "database/sql/driver"
    "errors"
    "net/http"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/sports-calendar/internal/calendar"
    "github.com/iliyamo/sports-calendar/internal/detail"
    "github.com/iliyamo/sports-calendar/internal/model"
    "github.com/iliyamo/sports-calendar/internal/repository"
    "github.com/iliyamo/sports-calendar/internal/service"
)

// statusFor maps domain errors to an HTTP status and a client-facing
// message.  Unknown errors are 500 with a generic message.
func statusFor(err error) (int, string) {
    switch {
    case errors.Is(err, repository.ErrSessionNotFound):
        return http.StatusNotFound, "session not found"
    case errors.Is(err, detail.ErrViewNotFound):
        return http.StatusNotFound, "view not found"
    case errors.Is(err, service.ErrUnauthenticated):
        return http.StatusUnauthorized, "sign in required"
    case errors.Is(err, service.ErrForbidden), errors.Is(err, repository.ErrForbidden),
        errors.Is(err, detail.ErrNotEligible):
        return http.StatusForbidden, "you may not cancel this session"
    case errors.Is(err, repository.ErrConflict):
        return http.StatusConflict, "session can no longer be cancelled"
    case errors.Is(err, service.ErrEmptyReason), errors.Is(err, detail.ErrEmptyReason),
        errors.Is(err, repository.ErrMissingReason):
        return http.StatusUnprocessableEntity, "a cancellation reason is required"
    case errors.Is(err, detail.ErrReasonTooLong), isDataTooLong(err):
        return http.StatusUnprocessableEntity, "the cancellation reason is too long"
    case errors.Is(err, repository.ErrSessionFull):
        return http.StatusConflict, "session is full"
    case errors.Is(err, repository.ErrSessionClosed):
        return http.StatusConflict, "session is not open for registration"
    case errors.Is(err, repository.ErrAlreadyJoined):
        return http.StatusConflict, "already joined"
    case errors.Is(err, detail.ErrBusy):
        return http.StatusConflict, "cancellation already in progress"
    case errors.Is(err, detail.ErrInvalidTransition):
        return http.StatusConflict, "action not available in the current state"
    case errors.Is(err, detail.ErrClosed):
        return http.StatusGone, "view is closed"
    case errors.Is(err, repository.ErrInvalidSort):
        return http.StatusBadRequest, "invalid sort"
    case errors.Is(err, calendar.ErrInvalidMonth):
        return http.StatusBadRequest, "month must look like 2024-03"
    case errors.Is(err, model.ErrInvalidCapacity), errors.Is(err, model.ErrOverCapacity),
        errors.Is(err, model.ErrUnknownStatus), errors.Is(err, model.ErrReasonMismatch):
        return http.StatusUnprocessableEntity, err.Error()
    case errors.Is(err, context.DeadlineExceeded), errors.Is(err, driver.ErrBadConn):
        return http.StatusBadGateway, "data service unavailable, try again"
    }
    return http.StatusInternalServerError, "something went wrong"
}

// isDataTooLong matches MySQL error 1406, raised when a value overflows its column.
func isDataTooLong(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1406
}
