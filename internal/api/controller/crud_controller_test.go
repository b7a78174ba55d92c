package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/gin-gonic/gin"
)

// mockCrudService implements CrudService[citystore.City]
type mockCrudService struct {
	allErr    error
	removeErr error
	removed   []citystore.City
}

func (m *mockCrudService) All(ctx context.Context) ([]citystore.City, error) {
	return nil, m.allErr
}
func (m *mockCrudService) Add(ctx context.Context, item citystore.City) ([]citystore.City, error) {
	return []citystore.City{item}, nil
}
func (m *mockCrudService) Remove(ctx context.Context, name string) ([]citystore.City, error) {
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	return m.removed, nil
}

func TestCrudController_Delete_MissingName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cc := &CrudController[citystore.City]{Service: &mockCrudService{}}

	r := gin.New()
	// Register route without :name to simulate missing name param
	r.DELETE("/resource/", cc.Delete)

	req := httptest.NewRequest(http.MethodDelete, "/resource/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestCrudController_Delete_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &mockCrudService{removed: []citystore.City{{Name: "Astana"}}}
	cc := &CrudController[citystore.City]{Service: svc}

	r := gin.New()
	r.DELETE("/resource/:name", cc.Delete)

	req := httptest.NewRequest(http.MethodDelete, "/resource/Almaty", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp []citystore.City
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0].Name != "Astana" {
		t.Errorf("unexpected response body: %v", resp)
	}
}

func TestCrudController_ErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		method     string
		path       string
		svc        *mockCrudService
		wantStatus int
	}{
		{"delete not found", http.MethodDelete, "/cities/Almaty", &mockCrudService{removeErr: citystore.ErrCityNotFound}, http.StatusNotFound},
		{"delete generic error", http.MethodDelete, "/cities/Almaty", &mockCrudService{removeErr: errors.New("disk full")}, http.StatusInternalServerError},
		{"list empty file", http.MethodGet, "/cities", &mockCrudService{allErr: citystore.ErrEmptyFile}, http.StatusUnprocessableEntity},
		{"list missing file", http.MethodGet, "/cities", &mockCrudService{allErr: citystore.ErrFileNotFound}, http.StatusUnprocessableEntity},
		{"list deadline", http.MethodGet, "/cities", &mockCrudService{allErr: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := &CrudController[citystore.City]{Service: tt.svc}
			r := gin.New()
			r.GET("/cities", cc.GetAll)
			r.DELETE("/cities/:name", cc.Delete)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestCrudController_Create_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cc := &CrudController[citystore.City]{Service: &mockCrudService{}, Validator: NewCityCrudValidator()}

	r := gin.New()
	r.POST("/city", cc.Create)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"name":"Almaty"}`, http.StatusOK},
		{"empty name", `{"name":""}`, http.StatusBadRequest},
		{"too long", `{"name":"Llanfairpwllgwyngyllgogerychwyrndrobwll"}`, http.StatusBadRequest},
		{"not json", `Almaty`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/city", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCityCrudService_AgainstJSONStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "city_list.json")
	if err := os.WriteFile(path, []byte(`[{"name":"Almaty"}]`), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	store, err := citystore.NewJSONStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cc := &CrudController[citystore.City]{Service: &CityCrudService{Store: store}, Validator: NewCityCrudValidator()}
	r := gin.New()
	cc.RegisterCrudRoutes(r.Group("/api"), "citylist", "city")

	req := httptest.NewRequest(http.MethodPost, "/api/city", strings.NewReader(`{"name":"Astana"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 on add, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/city/Almaty", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 on delete, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/citylist", nil))
	var resp []citystore.City
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp) != 1 || resp[0].Name != "Astana" {
		t.Errorf("unexpected city list: %v", resp)
	}
}
