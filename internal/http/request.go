package http

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"talky/internal/analytics"
	"talky/internal/records"
)

var errBadRequest = errors.New("bad request")

// User IDs end up in object keys and log lines.
var validUserID = regexp.MustCompile(`^[A-Za-z0-9@._:|-]{1,128}$`)

var validMonth = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

const maxFilterLength = 200

func userID(r *http.Request) (string, error) {
	id := r.PathValue("userID")
	if id == "" {
		return "", records.ErrMissingUser
	}
	if !validUserID.MatchString(id) {
		return "", fmt.Errorf("%w: invalid user id", errBadRequest)
	}
	return id, nil
}

// parseFilter reads the ledger filter from the query string. Values are
// not trimmed: dropdown values compare exactly.
func parseFilter(r *http.Request) (analytics.Filter, error) {
	q := r.URL.Query()
	f := analytics.Filter{
		Search:      q.Get("search"),
		Category:    q.Get("category"),
		Subcategory: q.Get("subcategory"),
		Provider:    q.Get("provider"),
		Month:       q.Get("month"),
	}
	for name, v := range map[string]string{
		"search":      f.Search,
		"category":    f.Category,
		"subcategory": f.Subcategory,
		"provider":    f.Provider,
	} {
		if len(v) > maxFilterLength {
			return f, fmt.Errorf("%w: %s filter is too long", errBadRequest, name)
		}
		if strings.ContainsFunc(v, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
			return f, fmt.Errorf("%w: %s filter contains control characters", errBadRequest, name)
		}
	}
	if f.Month != "" && f.Month != analytics.AllValues && !validMonth.MatchString(f.Month) {
		return f, fmt.Errorf("%w: month must be YYYY-MM", errBadRequest)
	}
	return f, nil
}
