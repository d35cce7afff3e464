package main

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = defaultExternalHTTPTimeoutSeconds * time.Second

// externalHTTPClient is shared by every outbound call (portal, Meta Graph
// API); keeping one client keeps the timeout policy in one place.
var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient applies the configured timeout to the shared
// client and returns the value actually applied. Non-positive values fall
// back to the default.
func ConfigureExternalHTTPClient(seconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}
