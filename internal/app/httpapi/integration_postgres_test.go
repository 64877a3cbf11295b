//go:build integration && postgres

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/plusmaps/atlas/internal/app/domain/location"
	"github.com/plusmaps/atlas/internal/app/services/catalog"
	"github.com/plusmaps/atlas/internal/app/services/gate"
	"github.com/plusmaps/atlas/internal/app/storage/postgres"
	"github.com/plusmaps/atlas/internal/config"
	"github.com/plusmaps/atlas/internal/middleware"
	"github.com/plusmaps/atlas/internal/platform/database"
	"github.com/plusmaps/atlas/internal/platform/migrations"
	"github.com/plusmaps/atlas/internal/rpc"
)

// Integration test against PostgreSQL: migrations, stored functions and the
// full HTTP stack over a real connection.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()

	if err := migrations.Apply(dsn, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	mgr := database.NewManager(config.DatabaseConfig{DSN: dsn}, nil)
	if err := mgr.Ensure(ctx, 3, time.Second); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	err := mgr.Do(ctx, func(db *sqlx.DB) error {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO locations (id, name, country, state, description, svg_link, rating)
			VALUES ('it-1', 'Integration City', 'Testland', 'North', 'seeded by the integration test', '', 4.9)
			ON CONFLICT (id) DO UPDATE SET rating = EXCLUDED.rating`); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO blocked_users (userid) VALUES ('it-blocked')
			ON CONFLICT (userid) DO NOTHING`)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := postgres.New(mgr, nil)
	dispatcher := rpc.NewDispatcher(gate.New(store, nil), nil)
	if err := RegisterMethods(dispatcher, catalog.New(store, nil)); err != nil {
		t.Fatalf("register methods: %v", err)
	}

	var handler http.Handler = NewHandler(dispatcher, mgr, nil)
	handler = middleware.NewCORSMiddleware([]string{"*"}).Handler(handler)

	server := httptest.NewServer(handler)
	defer server.Close()
	client := server.Client()

	// Lookup through get_location_by_id.
	status, env := callRPC(t, client, server.URL, `{"method":"getLocationById","params":{"id":"it-1"}}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("lookup: status=%d success=%v error=%q", status, env.Success, env.Error)
	}
	var loc location.Location
	if err := json.Unmarshal(env.Data, &loc); err != nil {
		t.Fatalf("decode location: %v", err)
	}
	if loc.Name != "Integration City" {
		t.Fatalf("loc.Name = %q", loc.Name)
	}

	// Ranking through get_top_locations.
	status, env = callRPC(t, client, server.URL, `{"method":"getTopLocations","params":{"limit":100}}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("top: status=%d success=%v error=%q", status, env.Success, env.Error)
	}
	var locs []location.Location
	if err := json.Unmarshal(env.Data, &locs); err != nil {
		t.Fatalf("decode locations: %v", err)
	}
	found := false
	for _, l := range locs {
		if l.ID == "it-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("seeded row missing from getTopLocations")
	}

	// Search through search_locations.
	status, env = callRPC(t, client, server.URL, `{"method":"searchLocations","params":{"query":"integration cit"}}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("search: status=%d success=%v error=%q", status, env.Success, env.Error)
	}
	if !strings.Contains(string(env.Data), `"it-1"`) {
		t.Fatalf("search data = %s", string(env.Data))
	}

	// is_user_blocked verdict short-circuits dispatch.
	status, env = callRPC(t, client, server.URL, `{"method":"getTopLocations","params":{"userid":"it-blocked"}}`)
	if status != http.StatusTooManyRequests {
		t.Fatalf("blocked: status = %d, want 429", status)
	}
	if env.Error != "You have exceeded the rate limit" {
		t.Fatalf("blocked: error = %q", env.Error)
	}

	// log_user_request / log_user_response fire for identified callers.
	userID := "it-user-" + time.Now().Format("150405.000000000")
	status, env = callRPC(t, client, server.URL, `{"method":"getTopLocations","params":{"limit":1,"userid":"`+userID+`"}}`)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("identified call: status=%d success=%v error=%q", status, env.Success, env.Error)
	}
	var requests, responses int
	err = mgr.Do(ctx, func(db *sqlx.DB) error {
		if err := db.GetContext(ctx, &requests, `SELECT count(*) FROM user_requests WHERE userid = $1`, userID); err != nil {
			return err
		}
		return db.GetContext(ctx, &responses, `SELECT count(*) FROM user_responses WHERE userid = $1`, userID)
	})
	if err != nil {
		t.Fatalf("count activity: %v", err)
	}
	if requests != 1 || responses != 1 {
		t.Fatalf("activity counts: requests=%d responses=%d, want 1/1", requests, responses)
	}

	// Health endpoint over the same stack.
	resp, err := client.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("health: status=%d body=%q", resp.StatusCode, string(body))
	}
}

func callRPC(t *testing.T, client *http.Client, baseURL, body string) (int, envelope) {
	t.Helper()

	resp, err := client.Post(baseURL+"/rpc", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post rpc: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read rpc response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", string(raw), err)
	}
	return resp.StatusCode, env
}
