package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		BindAddr:               ":0",
		MetricsNamespace:       "test_app_" + time.Now().Format("150405000000000"),
		ContextRetention:       30 * 24 * time.Hour,
		SessionInactivity:      time.Minute,
		MaintenanceInterval:    time.Hour,
		OperationTTL:           time.Minute,
		OperationSweepEvery:    time.Minute,
		LowConfidenceThreshold: 0.6,
		LearningRate:           0.05,
		GeneratorMode:          "off",
	}
}

func TestBuildWithoutDatabase(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	built, err := Build(ctx, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer built.Cleanup()

	if built.API == nil || built.Agent == nil || built.Store == nil {
		t.Fatal("incomplete build result")
	}

	// The assembled service must answer a turn end to end.
	sess := built.Sessions.Create("user-1", "")
	turn, err := built.Agent.HandleQuery(ctx, "user-1", sess.ID, "", "What is the capacity of Terminal 1?")
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	if turn.Response == nil {
		t.Fatal("expected a response")
	}

	ts := httptest.NewServer(built.API.Router())
	defer ts.Close()
	res, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("healthz status = %d", res.StatusCode)
	}
}

func TestBuildWithMockGenerator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.GeneratorMode = "mock"
	cfg.MetricsNamespace = "test_app_gen_" + time.Now().Format("150405000000000")

	built, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer built.Cleanup()
}
