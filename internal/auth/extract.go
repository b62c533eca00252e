package auth

import (
	"errors"
	"net/http"
	"strings"
	"unicode"
)

// ErrMissingUserID is returned when a request carries no identity at all.
var ErrMissingUserID = errors.New("missing user id")

// ErrMalformedUserID is returned for an identifier that cannot be a valid id.
var ErrMalformedUserID = errors.New("malformed user id")

const (
	// UserIDHeader carries the caller identity on API requests.
	UserIDHeader = "x-user-id"
	// UserIDQueryParam is the GET-download fallback; browsers cannot set
	// headers on <a> navigation, so file fetches pass ?userId= instead.
	UserIDQueryParam = "userId"

	maxUserIDLength = 128
)

// ExtractUserID pulls the caller identifier from the request: the x-user-id
// header first, then the userId query parameter.
func ExtractUserID(r *http.Request) (string, error) {
	id := r.Header.Get(UserIDHeader)
	if id == "" {
		id = r.URL.Query().Get(UserIDQueryParam)
	}
	if id == "" {
		return "", ErrMissingUserID
	}
	if err := ValidateUserID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ValidateUserID rejects identifiers that can never match a stored principal.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > maxUserIDLength {
		return ErrMalformedUserID
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrMalformedUserID
		}
	}
	return nil
}
