package ports

import "net/http"

// HTTPClient abstracts HTTP operations for dependency injection.
// The standard *http.Client satisfies this interface. It carries the
// registration call; frame uploads use a raw connection.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}
