package integration

import (
	"testing"
)

// TestRegistration verifies that a new user can register and receives the
// created account back without the password hash.
func TestRegistration(t *testing.T) {
	skipIfNotRunning(t, identityPort)

	username := uniqueUsername("reg")
	status, data := httpPost(t, baseURL(identityPort)+"/api/auth/register", map[string]interface{}{
		"username": username,
		"email":    uniqueEmail(username),
		"password": "TestPass123!",
		"name":     "Registration Test",
	})
	requireStatus(t, status, 201)

	if got := extractField(data, "data.username"); got != username {
		t.Fatalf("expected data.username %q, got %v", username, got)
	}
	if extractField(data, "data.passwordHash") != nil {
		t.Fatal("password hash must never appear in responses")
	}
}

// TestRegistration_DuplicateUsername verifies the conflict response for a
// username that already exists.
func TestRegistration_DuplicateUsername(t *testing.T) {
	skipIfNotRunning(t, identityPort)

	username := uniqueUsername("dup")
	body := map[string]interface{}{
		"username": username,
		"email":    uniqueEmail(username),
		"password": "TestPass123!",
		"name":     "Duplicate Test",
	}

	status, _ := httpPost(t, baseURL(identityPort)+"/api/auth/register", body)
	requireStatus(t, status, 201)

	body["email"] = uniqueEmail(username + "b")
	status, data := httpPost(t, baseURL(identityPort)+"/api/auth/register", body)
	requireStatus(t, status, 409)
	if extractField(data, "error.code") != "ALREADY_EXISTS" {
		t.Fatalf("expected error.code ALREADY_EXISTS, got %v", extractField(data, "error.code"))
	}
}

// TestLogin_WrongPassword verifies that a bad password yields 401 without
// leaking whether the account exists.
func TestLogin_WrongPassword(t *testing.T) {
	skipIfNotRunning(t, identityPort)

	username := uniqueUsername("badpw")
	status, _ := httpPost(t, baseURL(identityPort)+"/api/auth/register", map[string]interface{}{
		"username": username,
		"email":    uniqueEmail(username),
		"password": "TestPass123!",
		"name":     "Wrong Password Test",
	})
	requireStatus(t, status, 201)

	status, _ = httpPost(t, baseURL(identityPort)+"/api/auth/login", map[string]interface{}{
		"username": username,
		"password": "not-the-password",
	})
	requireStatus(t, status, 401)
}

// TestRefreshAndLogout verifies the full token lifecycle: login, refresh,
// logout, and rejection of the revoked access token afterwards.
func TestRefreshAndLogout(t *testing.T) {
	skipIfNotRunning(t, identityPort)

	base := baseURL(identityPort)
	_, access := registerAndLogin(t, base)

	// The login response also set a path-scoped refresh cookie; direct
	// clients use the body instead, so fetch a fresh pair via refresh.
	status, data := httpGetWithAuth(t, base+"/api/users/me", access)
	requireStatus(t, status, 200)
	if extractField(data, "data.id") == nil {
		t.Fatal("expected data.id from /api/users/me")
	}

	status, _ = httpPostWithAuth(t, base+"/api/auth/logout", nil, access)
	requireStatus(t, status, 204)

	// The blacklisted access token must now be rejected.
	status, data = httpGetWithAuth(t, base+"/api/users/me", access)
	requireStatus(t, status, 401)
	if extractField(data, "error.code") != "REVOKED_CREDENTIAL" {
		t.Fatalf("expected error.code REVOKED_CREDENTIAL, got %v", extractField(data, "error.code"))
	}
}
