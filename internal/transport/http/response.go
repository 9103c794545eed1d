package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	apierrors "twmarket/internal/errors"
)

// success renders the standard envelope. count is included for lists.
func success(w http.ResponseWriter, r *http.Request, status int, data interface{}, count int) {
	body := map[string]interface{}{
		"status": "success",
		"data":   data,
	}
	if count >= 0 {
		body["count"] = count
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.ErrValidation(name, name+" must be an integer")
	}
	return n, nil
}

// clock resolves the default trading date
type clock struct {
	loc *time.Location
	now func() time.Time
}

// today formats the current date in the market timezone
func (c clock) today() string {
	return c.now().In(c.loc).Format(time.DateOnly)
}

// dateOr returns date, or today when it is empty
func (c clock) dateOr(date string) string {
	if date == "" {
		return c.today()
	}
	return date
}
