package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/yt2spotify/internal/shared"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

func TestOAuthHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		exchanger  *fakeExchanger
		wantStatus int
		wantErr    error
	}{
		{
			name:       "success",
			query:      "?state=s1&code=abc",
			exchanger:  &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bad state",
			query:      "?state=nope&code=abc",
			exchanger:  &fakeExchanger{},
			wantStatus: http.StatusBadRequest,
			wantErr:    shared.ErrAuthFailed,
		},
		{
			name:       "denied",
			query:      "?state=s1&error=access_denied",
			exchanger:  &fakeExchanger{},
			wantStatus: http.StatusBadRequest,
			wantErr:    shared.ErrAuthFailed,
		},
		{
			name:       "exchange fails",
			query:      "?state=s1&code=abc",
			exchanger:  &fakeExchanger{err: fmt.Errorf("%w: bad code", shared.ErrAuthFailed)},
			wantStatus: http.StatusInternalServerError,
			wantErr:    shared.ErrAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(tt.exchanger, "http://127.0.0.1:3000/callback", "s1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			tok, err := h.Wait(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Wait() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || tok.AccessToken != "tok" {
				t.Errorf("Wait() = %v, %v", tok, err)
			}
		})
	}
}

func TestOAuthHandler_OnlyOnce(t *testing.T) {
	ex := &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}}
	h := NewOAuthHandler(ex, "http://127.0.0.1:3000/cb", "s1")

	if got := h.Routes(); len(got) != 1 || got[0] != "/cb" {
		t.Errorf("Routes() = %v", got)
	}

	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s1&code=c", nil))
		if rec.Code != want {
			t.Errorf("call %d status = %d, want %d", i, rec.Code, want)
		}
	}
	if len(ex.codes) != 1 {
		t.Errorf("exchanged %d times, want 1", len(ex.codes))
	}
}

func TestOAuthHandler_WaitTimeout(t *testing.T) {
	h := NewOAuthHandler(&fakeExchanger{}, "http://127.0.0.1:3000/callback", "s1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.Wait(ctx); !errors.Is(err, shared.ErrTimeout) {
		t.Errorf("Wait() error = %v, want ErrTimeout", err)
	}
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewState()
	if len(a) != 32 || a == b {
		t.Errorf("NewState() = %q, %q", a, b)
	}
}

type pingHandler struct{}

func (pingHandler) Routes() []string { return []string{"/ping"} }

func (pingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "pong")
}

func TestCallbackMux(t *testing.T) {
	m := NewCallbackMux()

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	m.Use(mw("first"), mw("second"))
	m.Mount(pingHandler{})

	tests := []struct {
		name   string
		method string
		path   string
		code   int
		body   string
	}{
		{"mounted route", http.MethodGet, "/ping", http.StatusOK, "pong"},
		{"wrong method", http.MethodPost, "/ping", http.StatusMethodNotAllowed, ""},
		{"unknown path", http.MethodGet, "/favicon.ico", http.StatusNotFound, "waiting for the Spotify sign-in redirect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body = %q, want substring %q", rec.Body.String(), tt.body)
			}
		})
	}

	if strings.Join(order, ",") != "first,second" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestCallbackServer(t *testing.T) {
	ex := &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}}
	h := NewOAuthHandler(ex, "http://127.0.0.1:0/callback", "s1")

	srv, err := ListenCallback("http://127.0.0.1:0/callback", h, nil)
	if err != nil {
		t.Fatalf("ListenCallback() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for i := 0; i < 50; i++ {
			resp, err := http.Get("http://" + srv.Addr() + "/callback?state=s1&code=c")
			if err == nil {
				resp.Body.Close()
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	tok, err := srv.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("token = %q", tok.AccessToken)
	}
}

func TestListenCallback_InvalidURI(t *testing.T) {
	if _, err := ListenCallback("not a url", NewOAuthHandler(&fakeExchanger{}, "", "s"), nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("ListenCallback() error = %v, want ErrInvalidConfig", err)
	}
}
