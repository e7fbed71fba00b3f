package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

func TestClient_Register(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/devices" {
				t.Errorf("expected path /api/v1/devices, got %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("expected method POST, got %s", r.Method)
			}

			var req api.RegisterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
			if req.Serial != "dev-1" {
				t.Errorf("expected serial dev-1, got %s", req.Serial)
			}

			resp := api.Response[api.RegisterResponse]{
				Success: true,
				Data: api.RegisterResponse{
					Serial:         "dev-1",
					Address:        "10.10.0.2",
					RelayPublicKey: "relay-key",
					RelayEndpoint:  "relay.example.com",
				},
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		// Trailing slash on the base URL must not produce double slashes
		client := NewClient(server.URL+"/", 0, log)
		resp, err := client.Register(context.Background(), "dev-1", "device-key")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Address != "10.10.0.2" {
			t.Errorf("expected address 10.10.0.2, got %s", resp.Address)
		}
		if resp.RelayPublicKey != "relay-key" {
			t.Errorf("expected relay public key to be set, got %q", resp.RelayPublicKey)
		}
		if resp.RelayPort != 51820 {
			t.Errorf("expected default port 51820, got %d", resp.RelayPort)
		}
	})

	t.Run("duplicate serial is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			resp := api.Response[any]{
				Success: false,
				Error: &api.ErrorInfo{
					Code:    "device_exists",
					Message: "device dev-1 is already registered",
				},
			}
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		_, err := client.Register(context.Background(), "dev-1", "device-key")

		if err == nil {
			t.Fatal("expected an error, got nil")
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %T: %v", err, err)
		}
		if apiErr.Code != "device_exists" {
			t.Errorf("expected code device_exists, got %s", apiErr.Code)
		}
		if apiErr.StatusCode != http.StatusConflict {
			t.Errorf("expected status 409, got %d", apiErr.StatusCode)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("expected exactly 1 attempt for a permanent rejection, got %d", n)
		}
	})

	t.Run("busy relay retried honoring Retry-After", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("Retry-After", "1")
				resp := api.Response[any]{
					Success: false,
					Error: &api.ErrorInfo{
						Code:    "interface_down",
						Message: "relay interface is not ready",
					},
				}
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(resp)
				return
			}

			resp := api.Response[api.RegisterResponse]{
				Success: true,
				Data: api.RegisterResponse{
					Serial:         "dev-1",
					Address:        "10.10.0.2",
					RelayPublicKey: "relay-key",
				},
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)

		start := time.Now()
		resp, err := client.Register(context.Background(), "dev-1", "device-key")
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Address != "10.10.0.2" {
			t.Errorf("expected address 10.10.0.2, got %s", resp.Address)
		}
		if n := atomic.LoadInt32(&calls); n != 2 {
			t.Errorf("expected 2 attempts, got %d", n)
		}
		if elapsed < time.Second {
			t.Errorf("expected the client to honor Retry-After of 1s, waited only %v", elapsed)
		}
	})

	t.Run("failure after retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		client.maxAttempts = 2

		_, err := client.Register(context.Background(), "dev-1", "device-key")

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if !strings.Contains(err.Error(), "failed after retries") {
			t.Errorf("expected error to mention retries, got '%v'", err)
		}
	})
}

func TestClient_Deregister(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	t.Run("success with warning", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/devices/dev-1" {
				t.Errorf("expected path /api/v1/devices/dev-1, got %s", r.URL.Path)
			}
			if r.Method != "DELETE" {
				t.Errorf("expected method DELETE, got %s", r.Method)
			}

			resp := api.Response[api.DeregisterResponse]{
				Success: true,
				Data: api.DeregisterResponse{
					Serial:  "dev-1",
					Address: "10.10.0.2",
					Warning: "peer removal failed, entry will be swept by the next reconcile",
				},
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		resp, err := client.Deregister(context.Background(), "dev-1")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Warning == "" {
			t.Error("expected the warning to be passed through")
		}
		if resp.Address != "10.10.0.2" {
			t.Errorf("expected freed address 10.10.0.2, got %s", resp.Address)
		}
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := api.Response[any]{
				Success: false,
				Error: &api.ErrorInfo{
					Code:    "device_not_found",
					Message: "no device with serial dev-404",
				},
			}
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		_, err := client.Deregister(context.Background(), "dev-404")

		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})
}

func TestClient_GetDevice(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/devices/dev-1" {
				t.Errorf("expected path /api/v1/devices/dev-1, got %s", r.URL.Path)
			}

			resp := api.Response[api.DeviceInfo]{
				Success: true,
				Data: api.DeviceInfo{
					Serial:    "dev-1",
					PublicKey: "device-key",
					Address:   "10.10.0.2",
				},
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		device, err := client.GetDevice(context.Background(), "dev-1")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if device.Serial != "dev-1" {
			t.Errorf("expected serial dev-1, got %s", device.Serial)
		}
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		_, err := client.GetDevice(context.Background(), "dev-404")

		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})
}

func TestClient_ListDevices(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/devices" {
			t.Errorf("expected path /api/v1/devices, got %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("expected method GET, got %s", r.Method)
		}

		resp := api.Response[api.DeviceListResponse]{
			Success: true,
			Data: api.DeviceListResponse{
				Devices: []api.DeviceInfo{
					{Serial: "dev-a", Address: "10.10.0.2"},
					{Serial: "dev-b", Address: "10.10.0.3"},
				},
				Count: 2,
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, log)
	list, err := client.ListDevices(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if list.Count != 2 || len(list.Devices) != 2 {
		t.Fatalf("expected 2 devices, got count=%d len=%d", list.Count, len(list.Devices))
	}
	if list.Devices[0].Serial != "dev-a" {
		t.Errorf("expected dev-a first, got %s", list.Devices[0].Serial)
	}
}

func TestClient_Reconcile(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/reconcile" {
				t.Errorf("expected path /api/v1/reconcile, got %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("expected method POST, got %s", r.Method)
			}

			resp := api.Response[api.ReconcileResponse]{
				Success: true,
				Data: api.ReconcileResponse{
					PeersAdded:   1,
					PeersRemoved: 2,
					InSync:       false,
				},
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		result, err := client.Reconcile(context.Background())

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.PeersAdded != 1 || result.PeersRemoved != 2 {
			t.Errorf("unexpected reconcile counts: %+v", result)
		}
	})

	t.Run("interface down reports retry hint", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Retry-After", "30")
			resp := api.Response[any]{
				Success: false,
				Error: &api.ErrorInfo{
					Code:    "interface_down",
					Message: "relay interface is not ready",
				},
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewClient(server.URL, 0, log)
		_, err := client.Reconcile(context.Background())

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %T: %v", err, err)
		}
		if apiErr.Code != "interface_down" {
			t.Errorf("expected code interface_down, got %s", apiErr.Code)
		}
		if apiErr.RetryAfter != 30 {
			t.Errorf("expected Retry-After 30, got %d", apiErr.RetryAfter)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("expected reconcile to be single-shot, got %d calls", n)
		}
	})
}

func TestClient_GetHealth(t *testing.T) {
	log := logger.NewDevelopment("client_test")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected path /health, got %s", r.URL.Path)
		}

		resp := api.Response[api.HealthResponse]{
			Success: true,
			Data: api.HealthResponse{
				Status:       "degraded",
				Interface:    "wg0",
				InterfaceUp:  false,
				DeviceCount:  3,
				PoolCapacity: 253,
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, log)
	health, err := client.GetHealth(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if health.Status != "degraded" {
		t.Errorf("expected status degraded, got %s", health.Status)
	}
	if health.DeviceCount != 3 {
		t.Errorf("expected device count 3, got %d", health.DeviceCount)
	}
}
