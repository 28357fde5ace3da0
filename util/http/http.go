// Package http is the small request/response client the matting collaborator and the image
// loader talk through.
package http

import (
	"context"
	"time"
)

// IClient sends one request described by RequestParam.
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam describes a request and where its reply goes. A positive Timeout bounds this
// request on top of the client's own timeout.
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
