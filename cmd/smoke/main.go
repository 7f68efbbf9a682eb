// Command smoke runs an end-to-end booking flow against a running API:
// signup, business creation, membership, availability, booking and the
// double-booking conflict.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("FITBOOK_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}
	run := rand.New(rand.NewSource(time.Now().UnixNano())).Int31()

	ownerEmail := fmt.Sprintf("owner-%d@smoke.test", run)
	memberEmail := fmt.Sprintf("member-%d@smoke.test", run)

	c.signup("Smoke Owner", ownerEmail, "smoke-pass-1")
	owner := c.login(ownerEmail, "smoke-pass-1")
	member := c.signup("Smoke Member", memberEmail, "smoke-pass-2")
	memberTokens := c.login(memberEmail, "smoke-pass-2")

	var biz struct {
		ID string `json:"id"`
	}
	c.call(http.MethodPost, "/v1/businesses", owner, map[string]any{
		"name": fmt.Sprintf("Smoke Gym %d", run),
	}, http.StatusCreated, &biz)

	c.call(http.MethodPost, "/v1/memberships", owner, map[string]any{
		"userId":     member.ID,
		"businessId": biz.ID,
		"role":       "MEMBER",
	}, http.StatusCreated, nil)

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	var av struct {
		Slots []struct {
			ID string `json:"id"`
		} `json:"slots"`
	}
	c.call(http.MethodPost, "/v1/workouts/availability", owner, map[string]any{
		"businessId":  biz.ID,
		"sessionName": "Smoke Session",
		"availabilities": []map[string]any{
			{"startTime": start.Format(time.RFC3339), "endTime": start.Add(time.Hour).Format(time.RFC3339)},
		},
	}, http.StatusCreated, &av)
	if len(av.Slots) != 1 {
		log.Fatalf("expected one slot, got %d", len(av.Slots))
	}
	slotID := av.Slots[0].ID

	c.call(http.MethodPost, "/v1/bookings", memberTokens, map[string]any{
		"businessId": biz.ID,
		"slotIds":    []string{slotID},
	}, http.StatusCreated, nil)

	// Booking the same slot again must conflict.
	c.call(http.MethodPost, "/v1/bookings", memberTokens, map[string]any{
		"businessId": biz.ID,
		"slotIds":    []string{slotID},
	}, http.StatusConflict, nil)

	fmt.Printf("✅ booking smoke test passed: business=%s slot=%s\n", biz.ID, slotID)
}

type client struct {
	base string
	http *http.Client
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type user struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *client) signup(name, email, password string) user {
	var u user
	c.call(http.MethodPost, "/v1/auth/signup", tokenPair{}, map[string]any{
		"name":     name,
		"email":    email,
		"password": password,
	}, http.StatusCreated, &u)
	return u
}

func (c *client) login(email, password string) tokenPair {
	var resp struct {
		Tokens tokenPair `json:"tokens"`
	}
	c.call(http.MethodPost, "/v1/auth/login", tokenPair{}, map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK, &resp)
	if resp.Tokens.AccessToken == "" {
		log.Fatalf("login %s: empty access token", email)
	}
	return resp.Tokens
}

func (c *client) call(method, path string, tokens tokenPair, body any, wantStatus int, out any) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			log.Fatalf("%s %s: encode body: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &payload)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tokens.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
