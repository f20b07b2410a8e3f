package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/ingest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL: srv.URL + "/api/",
		Token:   "secret",
		Ingest:  ingest.Options{RentStatus: domain.StatusForRent},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestFetchProperties(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/properties" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("rentType"); got != "longue_duree" {
			t.Errorf("rentType = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id": 12345678901234, "status": "a_louer", "title": "T2", "price": 950, "features": ["Meublé, équipé"]},
			{"id": 2, "status": "loue", "title": "rented"},
			{"title": "no id", "status": "a_louer"}
		]`)
	})

	records, err := c.FetchProperties(context.Background(), domain.RentLongTerm)
	if err != nil {
		t.Fatalf("FetchProperties() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != "12345678901234" {
		t.Errorf("ID = %q, large ids must survive decoding", rec.ID)
	}
	if rec.Price == nil || *rec.Price != 950 {
		t.Errorf("Price = %v", rec.Price)
	}
	if !reflect.DeepEqual(rec.Features, []string{"Meublé, équipé"}) {
		t.Errorf("Features = %#v", rec.Features)
	}
}

func TestFetchPropertiesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data": [{"id": "a", "status": "a_louer"}, {"id": "b", "status": "a_louer"}]}`)
	})

	records, err := c.FetchProperties(context.Background(), domain.RentSeasonal)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
}

func TestFetchPropertiesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.FetchProperties(context.Background(), domain.RentLongTerm)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway || statusErr.Body != "boom" {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestFetchPropertiesBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id": 1,`)
	})
	if _, err := c.FetchProperties(context.Background(), domain.RentLongTerm); err == nil {
		t.Error("expected decode error")
	}
}

func TestFetchVisitRequests(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/visit-requests/me" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `[
			{"propertyId": 1},
			{"propertyId": "abc"},
			{"property_id": 7},
			{"property": {"id": 9}},
			{"status": "orphan"}
		]`)
	})

	ids, err := c.FetchVisitRequests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"1", "abc", "7", "9"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestSubmitVisitRequest(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/visit-requests" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SubmitVisitRequest(context.Background(), &domain.VisitRequest{ID: "r1", PropertyID: "42", Message: "Bonjour"})
	if err != nil {
		t.Fatalf("SubmitVisitRequest() error = %v", err)
	}
	expected := map[string]string{"id": "r1", "propertyId": "42", "message": "Bonjour"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("payload = %v, want %v", got, expected)
	}
}

func TestSubmitVisitRequestConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	err := c.SubmitVisitRequest(context.Background(), &domain.VisitRequest{PropertyID: "42"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusConflict {
		t.Errorf("expected 409 StatusError, got %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "::bad"} {
		if _, err := NewClient(Options{BaseURL: u}); err == nil {
			t.Errorf("NewClient(%q) expected error", u)
		}
	}
}

func TestParseCookieString(t *testing.T) {
	cookies := parseCookieString("session=abc; theme = dark ;broken; =x")
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	if cookies[0].Name != "session" || cookies[0].Value != "abc" || cookies[1].Name != "theme" || cookies[1].Value != "dark" {
		t.Errorf("cookies = %v", cookies)
	}
}
