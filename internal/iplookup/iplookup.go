// Package iplookup resolves the public IP address reported to the leads
// backend with offer submissions.
package iplookup

import (
	"context"
	"fmt"
	"net"
	"time"

	stderrors "loan-intake/internal/common/errors"
	commonhttp "loan-intake/internal/common/http"
)

const DefaultURL = "https://api64.ipify.org/?format=json"

// Resolver returns the caller's public IP.
type Resolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// Client queries an ipify-compatible endpoint.
type Client struct {
	url        string
	httpClient *commonhttp.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, httpClient: commonhttp.NewClient(timeout)}
}

func (c *Client) PublicIP(ctx context.Context) (string, error) {
	resp, err := c.httpClient.GetJSON(ctx, c.url)
	if err != nil {
		return "", stderrors.NewExternalServiceError("ipify", err)
	}
	if !resp.OK() {
		return "", stderrors.NewExternalServiceError("ipify", fmt.Errorf("status %d", resp.StatusCode))
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", stderrors.NewExternalServiceError("ipify", err)
	}
	if net.ParseIP(body.IP) == nil {
		return "", stderrors.NewExternalServiceError("ipify", fmt.Errorf("invalid ip %q", body.IP))
	}
	return body.IP, nil
}

// Static always answers with the same address.
type Static string

func (s Static) PublicIP(context.Context) (string, error) {
	return string(s), nil
}

// FromRemoteAddr extracts the host part of an http.Request RemoteAddr.
func FromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
