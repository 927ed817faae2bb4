// Command seed-knowledge uploads a YAML knowledge base to a running API server.
//
//	ADMIN_JWT_SECRET=... go run ./cmd/seed-knowledge -org diamond-smiles -file kb.yaml
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-chat/internal/chatbot"
	"github.com/wolfman30/clinic-chat/internal/clinic"
	httpmiddleware "github.com/wolfman30/clinic-chat/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()

	orgID := flag.String("org", clinic.DefaultOrgID, "clinic org id")
	file := flag.String("file", "", "YAML knowledge file")
	apiURL := flag.String("api", envOr("API_URL", "http://localhost:8080"), "API base URL")
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage: seed-knowledge -org <org-id> -file <knowledge.yaml>")
		os.Exit(1)
	}

	kb, err := chatbot.LoadKnowledgeFile(*file)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", *file, err)
		os.Exit(1)
	}
	if err := checkTemplates(kb, *orgID); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, s := range kb.Shadowed() {
		fmt.Printf("warning: trigger %q of %q is shadowed by %q\n", s.Trigger, s.Topic, s.ShadowedBy)
	}

	token := strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))
	if token == "" {
		token, err = mintAdminToken(os.Getenv("ADMIN_JWT_SECRET"), time.Now(), 5*time.Minute)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := seed(ctx, &http.Client{Timeout: 30 * time.Second}, *apiURL, token, *orgID, kb)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d topics for %s (version %d)\n", len(resp.Topics), resp.OrgID, resp.Version)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// checkTemplates renders every response against the built-in profile so
// unknown profile fields are caught before upload. The server repeats the
// check against the clinic's stored profile.
func checkTemplates(kb *chatbot.KnowledgeBase, orgID string) error {
	_, err := kb.Bind(clinic.DefaultProfile(orgID))
	return err
}

// mintAdminToken signs a short-lived admin token with the server's secret.
func mintAdminToken(secret string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("set ADMIN_TOKEN or ADMIN_JWT_SECRET")
	}
	claims := httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "seed-knowledge",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// seed replaces the org's stored knowledge base through the admin API.
func seed(ctx context.Context, client *http.Client, apiURL, token, orgID string, kb *chatbot.KnowledgeBase) (chatbot.KnowledgeResponse, error) {
	var out chatbot.KnowledgeResponse
	payload, err := json.Marshal(chatbot.ReplaceKnowledgeRequest{Topics: kb.Entries()})
	if err != nil {
		return out, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/admin/knowledge/%s", strings.TrimRight(apiURL, "/"), orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
