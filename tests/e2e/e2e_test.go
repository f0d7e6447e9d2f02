//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("FIELDOPS_API_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

type TestClient struct {
	httpClient *http.Client
}

func NewTestClient() *TestClient {
	jar, _ := cookiejar.New(nil)
	return &TestClient{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

func (c *TestClient) Do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("X-CSRF-Token", "e2e-client")
	}

	return c.httpClient.Do(req)
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestE2E_Workflows(t *testing.T) {
	// State shared between subtests
	var (
		e2eTenantID    string
		e2eOwnerEmail  string
		e2eOwnerPass   string
		e2eTechEmail   string
		e2eTechPass    string
		e2eTechUserID  string
	)

	// 1. Owner Bootstrap Flow
	t.Run("Owner Bootstrap Flow", func(t *testing.T) {
		client := NewTestClient()

		// The tenant and owner grant are prepared by the deployment:
		// FIELDOPS_BOOTSTRAP_OWNER_EMAIL / _TENANT_ID point at this user.
		e2eTenantID = getEnv("FIELDOPS_E2E_TENANT_ID", "11111111-1111-1111-1111-111111111111")
		e2eOwnerEmail = getEnv("FIELDOPS_BOOTSTRAP_OWNER_EMAIL", "owner@fieldops.local")
		e2eOwnerPass = getEnv("FIELDOPS_E2E_OWNER_PASSWORD", "owner_password_123")

		resp, err := client.Do("POST", apiBase+"/auth/register", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eOwnerEmail,
			"password":  e2eOwnerPass,
		})
		require.NoError(t, err)
		t.Logf("Registration status: %d", resp.StatusCode)
		// 201 Created or 409 Conflict (if already exists)
		assert.True(t, resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict)

		// Login
		resp, err = client.Do("POST", apiBase+"/auth/login", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eOwnerEmail,
			"password":  e2eOwnerPass,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Owner permissions should carry every capability
		resp, err = client.Do("GET", apiBase+"/authz/permissions", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var perms map[string]bool
		decode(t, resp, &perms)
		assert.True(t, perms["can_manage_settings"], "owner must hold can_manage_settings")
		assert.True(t, perms["can_assign_roles"], "owner must hold can_assign_roles")
	})

	// 2. Role Assignment Flow
	t.Run("Role Assignment Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTenantID)

		ownerClient := NewTestClient()
		resp, err := ownerClient.Do("POST", apiBase+"/auth/login", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eOwnerEmail,
			"password":  e2eOwnerPass,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Register a technician
		e2eTechEmail = fmt.Sprintf("tech-%d@fieldops.local", time.Now().Unix())
		e2eTechPass = "tech_password_123"

		resp, err = ownerClient.Do("POST", apiBase+"/auth/register", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eTechEmail,
			"password":  e2eTechPass,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			UserID string `json:"user_id"`
		}
		decode(t, resp, &created)
		require.NotEmpty(t, created.UserID)
		e2eTechUserID = created.UserID

		// Owner assigns the technician role
		resp, err = ownerClient.Do("POST", apiBase+"/users/"+e2eTechUserID+"/roles", map[string]string{
			"role": "technician",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		// Technician logs in and checks their capability surface
		techClient := NewTestClient()
		resp, err = techClient.Do("POST", apiBase+"/auth/login", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eTechEmail,
			"password":  e2eTechPass,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var perms map[string]bool
		resp, err = techClient.Do("GET", apiBase+"/authz/permissions", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &perms)
		assert.True(t, perms["can_view_work_orders"])
		assert.False(t, perms["can_assign_roles"], "technician must not assign roles")

		// Technician is denied when trying to escalate someone
		resp, err = techClient.Do("POST", apiBase+"/users/"+e2eTechUserID+"/roles", map[string]string{
			"role": "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	// 3. Brute Force Protection Flow
	//
	// The e2e compose file runs the server with LOGIN_SUSPICION_THRESHOLD=10
	// so the hard limiter, not the challenge escalation, is what this flow
	// exercises. With the defaults the flagged key would keep getting 403
	// challenges and never fill the attempt window.
	t.Run("Brute Force Protection Flow", func(t *testing.T) {
		require.NotEmpty(t, e2eTechEmail)

		client := NewTestClient()
		burstEmail := fmt.Sprintf("burst-%d@fieldops.local", time.Now().Unix())

		// Hammer a nonexistent account; every response must stay generic
		// and the pipeline must eventually decline with 429.
		var sawTooMany bool
		for i := 0; i < 12; i++ {
			resp, err := client.Do("POST", apiBase+"/auth/login", map[string]string{
				"tenant_id": e2eTenantID,
				"email":     burstEmail,
				"password":  "wrong-password",
			})
			require.NoError(t, err)

			var body map[string]any
			decode(t, resp, &body)

			switch resp.StatusCode {
			case http.StatusTooManyRequests:
				sawTooMany = true
			case http.StatusUnauthorized, http.StatusForbidden:
				// Generic message, no account existence leak
				msg, _ := body["error"].(string)
				assert.NotContains(t, msg, "not found")
				assert.NotContains(t, msg, "no such")
			default:
				t.Fatalf("unexpected status %d on attempt %d", resp.StatusCode, i+1)
			}
		}
		assert.True(t, sawTooMany, "repeated failures must eventually be rate limited")

		// The real technician still logs in fine from a clean window
		resp, err := client.Do("POST", apiBase+"/auth/login", map[string]string{
			"tenant_id": e2eTenantID,
			"email":     e2eTechEmail,
			"password":  e2eTechPass,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode,
			"throttling one key must not lock out other accounts")
	})
}
