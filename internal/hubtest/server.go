package hubtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
	"github.com/mayple/hubspot-portal-syncer/internal/hubspot"
)

// Portal is a fake HubSpot portal backed by an in-memory SQLite store. It
// authenticates requests by hapikey query parameter the way the legacy
// HubSpot API does.
type Portal struct {
	ID     int64
	APIKey string

	srv   *httptest.Server
	store *store
}

// NewPortal starts a fake portal. The server and its database are shut down
// when the test finishes.
func NewPortal(t *testing.T, id int64, apiKey string) *Portal {
	t.Helper()

	db, err := openDB(context.Background())
	if err != nil {
		t.Fatalf("open portal database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	p := &Portal{ID: id, APIKey: apiKey, store: &store{db: db}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /integrations/v1/me", p.handleAccount)
	mux.HandleFunc("GET /crm/v3/properties/{objectType}", p.handleListProperties)
	mux.HandleFunc("POST /crm/v3/properties/{objectType}", p.handleCreateProperty)
	mux.HandleFunc("GET /crm/v3/properties/{objectType}/groups", p.handleListGroups)
	mux.HandleFunc("POST /crm/v3/properties/{objectType}/groups", p.handleCreateGroup)

	handler := chain(mux, requestID(), auth(apiKey), jsonContentType())
	p.srv = httptest.NewServer(handler)
	t.Cleanup(p.srv.Close)

	return p
}

// URL returns the portal's base URL.
func (p *Portal) URL() string { return p.srv.URL }

// Client returns a hubspot.Client pointed at this portal, with the rate
// limiter opened up so tests stay fast.
func (p *Portal) Client() *hubspot.Client {
	return hubspot.New(p.APIKey,
		hubspot.WithBaseURL(p.srv.URL),
		hubspot.WithRateLimit(rate.NewLimiter(rate.Inf, 1)),
	)
}

// SeedProperty inserts a property definition directly into the portal store.
func (p *Portal) SeedProperty(t *testing.T, objectType domain.ObjectType, prop domain.Property) {
	t.Helper()
	if _, err := p.store.createProperty(context.Background(), objectType.String(), &prop); err != nil {
		t.Fatalf("seed property %s: %v", prop.Name, err)
	}
}

// SeedGroup inserts a property group directly into the portal store.
func (p *Portal) SeedGroup(t *testing.T, objectType domain.ObjectType, g domain.PropertyGroup) {
	t.Helper()
	if _, err := p.store.createGroup(context.Background(), objectType.String(), &g); err != nil {
		t.Fatalf("seed group %s: %v", g.Name, err)
	}
}

// Properties lists the portal's stored properties for assertions.
func (p *Portal) Properties(t *testing.T, objectType domain.ObjectType) []domain.Property {
	t.Helper()
	props, err := p.store.listProperties(context.Background(), objectType.String())
	if err != nil {
		t.Fatalf("list properties: %v", err)
	}
	return props
}

// Groups lists the portal's stored property groups for assertions.
func (p *Portal) Groups(t *testing.T, objectType domain.ObjectType) []domain.PropertyGroup {
	t.Helper()
	groups, err := p.store.listGroups(context.Background(), objectType.String())
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	return groups
}

// ---------------------------------------------------------------------------
// Handlers

func (p *Portal) handleAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hubspot.Account{
		PortalID: p.ID,
		TimeZone: "US/Eastern",
		Currency: "USD",
	})
}

func (p *Portal) handleListProperties(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	props, err := p.store.listProperties(r.Context(), objectType)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Results: toAny(props)})
}

func (p *Portal) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")

	var prop domain.Property
	if err := json.NewDecoder(r.Body).Decode(&prop); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input JSON")
		return
	}

	if prop.Name == "" || prop.Label == "" || prop.Type == "" || prop.FieldType == "" || prop.GroupName == "" {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			"Property name, label, type, fieldType, and groupName are required")
		return
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "date": true, "datetime": true,
		"enumeration": true, "bool": true, "phone_number": true,
	}
	if !validTypes[prop.Type] {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("Invalid property type: %s", prop.Type))
		return
	}

	created, err := p.store.createProperty(r.Context(), objectType, &prop)
	if err != nil {
		if isDuplicate(err) {
			writeError(w, r, http.StatusConflict, "CONFLICT",
				fmt.Sprintf("Property %q already exists", prop.Name))
			return
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (p *Portal) handleListGroups(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")
	groups, err := p.store.listGroups(r.Context(), objectType)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Results: toAny(groups)})
}

func (p *Portal) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	objectType := r.PathValue("objectType")

	var g domain.PropertyGroup
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input JSON")
		return
	}
	if g.Name == "" || g.Label == "" {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Group name and label are required")
		return
	}

	created, err := p.store.createGroup(r.Context(), objectType, &g)
	if err != nil {
		if isDuplicate(err) {
			writeError(w, r, http.StatusConflict, "CONFLICT",
				fmt.Sprintf("Property group %q already exists", g.Name))
			return
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ---------------------------------------------------------------------------
// Response plumbing

type collectionResponse struct {
	Results []any `json:"results"`
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, category, message string) {
	writeJSON(w, status, &hubspot.APIError{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID(r.Context()),
		Category:      category,
	})
}

// ---------------------------------------------------------------------------
// Middleware

type contextKey int

const correlationIDKey contextKey = iota

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// requestID generates a correlation ID per request, HubSpot-style.
func requestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := newUUID()
			ctx := context.WithValue(r.Context(), correlationIDKey, id)
			w.Header().Set("X-Correlation-Id", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// auth validates the hapikey query parameter on every request.
func auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("hapikey") != apiKey {
				writeError(w, r, http.StatusUnauthorized, "INVALID_AUTHENTICATION",
					"The API key provided is invalid.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonContentType() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware so the first one is the outermost handler.
func chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// newUUID generates a UUID v4 using crypto/rand.
func newUUID() string {
	var uuid [16]byte
	if _, err := rand.Read(uuid[:]); err != nil {
		return "00000000-0000-4000-8000-000000000000"
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16])
}
