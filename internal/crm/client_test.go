package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "s3cret")
}

func TestClientSendsSecretHeader(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s3cret", r.Header.Get(DefaultSecretHeader))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "/api/bot/user-info/telegram/42", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"user":{"name":"Alice"}}`)
	})

	resp, err := c.UserInfo(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.User)
	assert.Equal(t, "Alice", resp.User.Name)
}

func TestClientCustomSecretHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithSecretHeader("X-Api-Key"))
	_, err := c.UserInfo(context.Background(), "1")
	require.NoError(t, err)
}

func TestClientLinkAccountBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bot/link-account", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{
			"platform":         "telegram",
			"platformUserId":   "42",
			"platformUsername": "alice",
			"email":            "alice@example.com",
			"password":         "secret123",
		}, body)
		_, _ = io.WriteString(w, `{"success":true,"user":{"name":"Alice Doe"}}`)
	})

	resp, err := c.LinkAccount(context.Background(), LinkRequest{
		PlatformUserID:   "42",
		PlatformUsername: "alice",
		Email:            "alice@example.com",
		Password:         "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", resp.User.Name)
}

func TestClientCreateLeadOmitsUnusedSource(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "LGT", body["inboundSource"])
		_, has := body["outboundSource"]
		assert.False(t, has)
		_, _ = io.WriteString(w, `{"success":true,"lead":{"companyName":"Acme Co","sector":"Others","customSector":"Agritech","status":"Initial Discussion"}}`)
	})

	resp, err := c.CreateLead(context.Background(), LeadRequest{
		CompanyName:   "Acme Co",
		SourceType:    SourceInbound,
		InboundSource: "LGT",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Lead)
	assert.Equal(t, "Agritech", resp.Lead.DisplaySector())
	assert.Equal(t, "Initial Discussion", resp.Lead.Status)
}

func TestClientBusinessFailureOnNon2xx(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"Invalid email or password"}`)
	})

	resp, err := c.LinkAccount(context.Background(), LinkRequest{Email: "x", Password: "y"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid email or password", resp.Message)
}

func TestClientAPIErrorOnPlainNon2xx(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Stats(context.Background(), "42")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Body)
	assert.Equal(t, "CRM_HTTP_502", apiErr.Code())
}

func TestClientStatsDecode(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bot/stats/telegram/42", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"stats":{"totalLeads":5,"byStatus":{"initialDiscussion":3,"nda":1,"engagement":1},"converted":2},"user":{"name":"Alice"}}`)
	})

	resp, err := c.Stats(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 5, resp.Stats.TotalLeads)
	assert.Equal(t, 1, resp.Stats.ByStatus.NDA)
	assert.Equal(t, 2, resp.Stats.Converted)
}

func TestClientNotConfigured(t *testing.T) {
	_, err := NewClient("", "").UserInfo(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "s").UserInfo(context.Background(), "1")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
