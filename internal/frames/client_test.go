package frames

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moonback/photoboot/internal/geometry"
)

func TestClient_Active(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantName string
	}{
		{
			name:     "active frame",
			status:   http.StatusOK,
			body:     `{"frame":{"id":"f1","name":"Party","filename":"f1.png","position":"center","size":100}}`,
			wantName: "Party",
		},
		{name: "null frame", status: http.StatusOK, body: `{"frame":null}`},
		{name: "not found", status: http.StatusNotFound, body: `{"error":"no active frame"}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "malformed body", status: http.StatusOK, body: `{"frame":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != ActiveFramePath {
					t.Errorf("path = %q, want %q", r.URL.Path, ActiveFramePath)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL).Active(context.Background())
			if err != nil {
				t.Fatalf("Active() error = %v", err)
			}
			if tt.wantName == "" {
				if got != nil {
					t.Errorf("Active() = %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Name != tt.wantName {
				t.Errorf("Active() = %+v, want name %q", got, tt.wantName)
			}
		})
	}
}

func TestClient_ActiveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got, err := NewClient(url).Active(context.Background())
	if err != nil || got != nil {
		t.Errorf("Active() = %v, %v; want nil, nil", got, err)
	}
}

func TestClient_LoadAssetBacksCache(t *testing.T) {
	asset := borderFrame(t, 12, 12)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case FrameFilePath + "f1.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(asset)
		case ActiveFramePath:
			json.NewEncoder(w).Encode(map[string]any{"frame": &Descriptor{
				ID: "f1", Name: "Border", Filename: "f1.png", Position: geometry.Center, Size: 100,
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	frame, err := client.Active(ctx)
	if err != nil || frame == nil {
		t.Fatalf("Active() = %v, %v", frame, err)
	}

	comp := NewCompositor(NewCache(client))
	got, err := comp.Composite(ctx, bluePhoto(12, 12), frame)
	if err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	if c := got.Image.NRGBAAt(0, 0); c.R != 255 {
		t.Errorf("border pixel = %v, want red", c)
	}

	if _, err := client.LoadAsset(ctx, "missing.png"); err == nil {
		t.Error("LoadAsset(missing) error = nil, want error")
	}
}
