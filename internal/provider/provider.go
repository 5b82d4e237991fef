package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"busesareus.org/internal/models"
)

var (
	// ErrProviderUnavailable is returned when the upstream cannot be reached
	// or answers with a non-success status.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse is returned when the upstream answers with a body
	// that cannot be decoded.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// DataProvider turns a stop selection into a request against a remote data source.
type DataProvider interface {
	URL() (*url.URL, error)
	DataSourceToBytes(ctx context.Context) ([]byte, error)
}

// BusLocator returns the live positions of the buses serving a stop.
type BusLocator interface {
	Buses(ctx context.Context, stop *models.Stop) ([]models.Bus, error)
}

// APIError is an error document returned by the RTTI API, such as
// {"Code":"3005","Message":"No buses found."}.
type APIError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("translink api error %s: %s", e.Code, e.Message)
}

// rttiNoBusesCode is the RTTI error code for a stop without buses in service.
const rttiNoBusesCode = "3005"

// NoBuses reports whether the error only means that no buses are running.
func (e *APIError) NoBuses() bool {
	return e.Code == rttiNoBusesCode
}
