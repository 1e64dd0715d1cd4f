package apiclient

import (
	"net"
	"net/http"
	"time"
)

// HTTPClientSettings tunes the pooled transport used for API calls.
type HTTPClientSettings struct {
	Connect          time.Duration
	ConnKeepAlive    time.Duration
	ExpectContinue   time.Duration
	IdleConn         time.Duration
	MaxAllIdleConns  int
	MaxHostIdleConns int
	ResponseHeader   time.Duration
	TLSHandshake     time.Duration
}

// DefaultClientSettings returns the transport settings used when none are given.
func DefaultClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		Connect:          5 * time.Second,
		ExpectContinue:   1 * time.Second,
		IdleConn:         90 * time.Second,
		ConnKeepAlive:    30 * time.Second,
		MaxAllIdleConns:  100,
		MaxHostIdleConns: 10,
		ResponseHeader:   5 * time.Second,
		TLSHandshake:     5 * time.Second,
	}
}

// NewTransport builds an *http.Transport from s.
func NewTransport(s HTTPClientSettings) *http.Transport {
	return &http.Transport{
		ResponseHeaderTimeout: s.ResponseHeader,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: s.ConnKeepAlive,
			Timeout:   s.Connect,
		}).DialContext,
		MaxIdleConns:          s.MaxAllIdleConns,
		IdleConnTimeout:       s.IdleConn,
		TLSHandshakeTimeout:   s.TLSHandshake,
		MaxIdleConnsPerHost:   s.MaxHostIdleConns,
		ExpectContinueTimeout: s.ExpectContinue,
	}
}

// NewHTTPClient returns a client over NewTransport(s) with an overall timeout.
func NewHTTPClient(s HTTPClientSettings, timeout time.Duration) *http.Client {
	return &http.Client{Transport: NewTransport(s), Timeout: timeout}
}
