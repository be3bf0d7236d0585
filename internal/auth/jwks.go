package auth

import (
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/charmbracelet/log"
)

// NewJWKS fetches the key set of an external identity provider and keeps it
// fresh in the background. Stop the refresh with EndBackground.
func NewJWKS(url string, logger *log.Logger) (*keyfunc.JWKS, error) {
	options := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("jwks refresh failed", "url", url, "err", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	return keyfunc.Get(url, options)
}
