// Package httpc holds the outbound connection settings shared by the
// caption recognizers: an HTTP client for REST APIs and a websocket dialer
// for streaming ones. Both go through the environment's proxy.
package httpc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds one whole request, including reading the body.
	DefaultTimeout = 30 * time.Second

	dialTimeout  = 10 * time.Second
	keepAlive    = 30 * time.Second
	idleTimeout  = 90 * time.Second
	tlsHandshake = 10 * time.Second
)

// Client is the shared client for recognizer REST calls.
var Client = NewClient(DefaultTimeout)

func netDialer() *net.Dialer {
	return &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
}

// NewClient returns a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           netDialer().DialContext,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       idleTimeout,
			TLSHandshakeTimeout:   tlsHandshake,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// Dialer returns a websocket dialer with the same network settings as
// Client. handshake <= 0 falls back to the TLS handshake timeout.
func Dialer(handshake time.Duration) *websocket.Dialer {
	if handshake <= 0 {
		handshake = tlsHandshake
	}
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext:   netDialer().DialContext,
		HandshakeTimeout: handshake,
	}
}

// OAuth2Context returns ctx carrying Client, so oauth2 token sources and
// the clients built from them inherit its timeouts.
func OAuth2Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, Client)
}
