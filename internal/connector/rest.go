package connector

import (
	"context"
	"net/http"
	"time"

	"github.com/seaquake/bitsync/internal/config"
)

// REST is for REST API connection.
type REST struct {
	HTTPClient *http.Client
}

var rest REST

// InitREST initializes REST connection with configured values.
func InitREST(cfg *config.REST) *REST {
	if rest.HTTPClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		rest = REST{
			HTTPClient: &http.Client{
				Timeout:   time.Duration(cfg.ReqTimeoutSec) * time.Second,
				Transport: t,
			},
		}
	}
	return &rest
}

// Request creates a new GET request with the given context.
func (r *REST) Request(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Do sends the request on the pooled http client.
func (r *REST) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
