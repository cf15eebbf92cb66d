package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/roomgate/game/registry"
	"github.com/wricardo/roomgate/game/room"
	"github.com/wricardo/roomgate/game/service"
	ws "github.com/wricardo/roomgate/transport/websocket"
)

// MockRoomService implements service.RoomService for testing
type MockRoomService struct {
	ListRoomsFunc func(ctx context.Context, opts service.ListOptions) ([]*service.RoomInfo, error)
	GetRoomFunc   func(ctx context.Context, roomID string) (*service.RoomInfo, error)
	ListModesFunc func(ctx context.Context) ([]*service.ModeInfo, error)
	StatsFunc     func(ctx context.Context) (*service.Stats, error)
}

func (m *MockRoomService) ListRooms(ctx context.Context, opts service.ListOptions) ([]*service.RoomInfo, error) {
	if m.ListRoomsFunc != nil {
		return m.ListRoomsFunc(ctx, opts)
	}
	return []*service.RoomInfo{}, nil
}

func (m *MockRoomService) GetRoom(ctx context.Context, roomID string) (*service.RoomInfo, error) {
	if m.GetRoomFunc != nil {
		return m.GetRoomFunc(ctx, roomID)
	}
	return &service.RoomInfo{ID: roomID, Status: room.StatusWaiting}, nil
}

func (m *MockRoomService) ListModes(ctx context.Context) ([]*service.ModeInfo, error) {
	if m.ListModesFunc != nil {
		return m.ListModesFunc(ctx)
	}
	return []*service.ModeInfo{}, nil
}

func (m *MockRoomService) Stats(ctx context.Context) (*service.Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &service.Stats{}, nil
}

// Test helpers
func setupTestServer(mockService *MockRoomService) *Server {
	return NewServer(mockService, nil, nil)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target any) {
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func TestListRooms(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*testing.T, *MockRoomService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:  "Default order and no limit",
			query: "",
			setupMock: func(t *testing.T, m *MockRoomService) {
				m.ListRoomsFunc = func(ctx context.Context, opts service.ListOptions) ([]*service.RoomInfo, error) {
					if opts.Order != "asc" || opts.Limit != 0 {
						t.Errorf("Unexpected options %+v", opts)
					}
					return []*service.RoomInfo{
						{ID: "ABC234", Title: "One", PlayerCount: 1},
						{ID: "XYZ789", Title: "Two", PlayerCount: 3},
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp struct {
					Count int                 `json:"count"`
					Rooms []*service.RoomInfo `json:"rooms"`
				}
				parseResponse(t, w, &resp)
				if resp.Count != 2 || len(resp.Rooms) != 2 {
					t.Errorf("Expected 2 rooms, got %d", resp.Count)
				}
				if resp.Rooms[1].PlayerCount != 3 {
					t.Errorf("Expected player count 3, got %d", resp.Rooms[1].PlayerCount)
				}
			},
		},
		{
			name:  "Descending with limit",
			query: "?order=desc&limit=1",
			setupMock: func(t *testing.T, m *MockRoomService) {
				m.ListRoomsFunc = func(ctx context.Context, opts service.ListOptions) ([]*service.RoomInfo, error) {
					if opts.Order != "desc" || opts.Limit != 1 {
						t.Errorf("Unexpected options %+v", opts)
					}
					return []*service.RoomInfo{{ID: "XYZ789"}}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid order",
			query:          "?order=sideways",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid limit",
			query:          "?limit=many",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "Service error",
			query: "",
			setupMock: func(t *testing.T, m *MockRoomService) {
				m.ListRoomsFunc = func(ctx context.Context, opts service.ListOptions) ([]*service.RoomInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "service error" {
					t.Errorf("Expected error message 'service error', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockRoomService{}
			if tt.setupMock != nil {
				tt.setupMock(t, mockService)
			}

			server := setupTestServer(mockService)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/api/rooms"+tt.query, nil)

			server.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	tests := []struct {
		name           string
		roomID         string
		setupMock      func(*MockRoomService)
		expectedStatus int
	}{
		{
			name:   "Existing room",
			roomID: "ABC234",
			setupMock: func(m *MockRoomService) {
				m.GetRoomFunc = func(ctx context.Context, roomID string) (*service.RoomInfo, error) {
					return &service.RoomInfo{
						ID:      roomID,
						Players: []room.Player{{ID: "c1", Nickname: "Alice"}},
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "Missing room",
			roomID: "NOPE42",
			setupMock: func(m *MockRoomService) {
				m.GetRoomFunc = func(ctx context.Context, roomID string) (*service.RoomInfo, error) {
					return nil, service.ErrRoomNotFound
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "Unexpected failure",
			roomID: "ABC234",
			setupMock: func(m *MockRoomService) {
				m.GetRoomFunc = func(ctx context.Context, roomID string) (*service.RoomInfo, error) {
					return nil, fmt.Errorf("boom")
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockRoomService{}
			tt.setupMock(mockService)

			server := setupTestServer(mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/api/rooms/"+tt.roomID, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				var info service.RoomInfo
				parseResponse(t, w, &info)
				if info.ID != tt.roomID || len(info.Players) != 1 {
					t.Errorf("Unexpected room %+v", info)
				}
			}
		})
	}
}

func TestListModes(t *testing.T) {
	mockService := &MockRoomService{
		ListModesFunc: func(ctx context.Context) ([]*service.ModeInfo, error) {
			return []*service.ModeInfo{{ID: "deathmatch", Name: "Deathmatch", MaxPlayers: 8}}, nil
		},
	}
	server := setupTestServer(mockService)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/api/modes", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Count int                 `json:"count"`
		Modes []*service.ModeInfo `json:"modes"`
	}
	parseResponse(t, w, &resp)
	if resp.Count != 1 || resp.Modes[0].MaxPlayers != 8 {
		t.Errorf("Unexpected modes %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	mockService := &MockRoomService{
		StatsFunc: func(ctx context.Context) (*service.Stats, error) {
			return &service.Stats{Rooms: 2, Players: 5}, nil
		},
	}
	server := setupTestServer(mockService)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]any
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" || resp["rooms"] != float64(2) || resp["players"] != float64(5) {
		t.Errorf("Unexpected health response %+v", resp)
	}
}

func TestCORS(t *testing.T) {
	server := setupTestServer(&MockRoomService{})

	req := httptest.NewRequest("OPTIONS", "/api/rooms", nil)
	req.Header.Set("Origin", "https://lobby.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Expected Access-Control-Allow-Origin on preflight")
	}
}

func TestWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rooms := registry.New(nil)
	hub := ws.NewHub(nil)
	coord := service.NewCoordinator(rooms, hub, nil, nil)
	hub.SetDispatcher(coord)
	go hub.Run(ctx)

	srv := httptest.NewServer(NewServer(coord, hub, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]any{
		"event": service.EventCreateRoom,
		"data":  map[string]any{"title": "Lobby", "gameMode": "ffa", "maxPlayerCount": 4, "isPublicGame": true},
	})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack struct {
		Event string                     `json:"event"`
		Data  service.CreateRoomResponse `json:"data"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("Failed to read ack: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/rooms/" + ack.Data.RoomID)
	if err != nil {
		t.Fatalf("GET room failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected created room to be visible over REST, got %d", resp.StatusCode)
	}
}
