package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/portal/internal/infrastructure/sap"
	"github.com/stretchr/testify/require"
)

// TestMain runs before any tests and handles cleanup
func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// serviceLayer is a minimal SAP Service Layer serving canned master data
type serviceLayer struct {
	*httptest.Server
	items    atomic.Value // string
	partners map[string]string
	fail     atomic.Bool
}

func newServiceLayer(t *testing.T) *serviceLayer {
	t.Helper()
	sl := &serviceLayer{partners: map[string]string{}}
	sl.items.Store(`[]`)

	mux := http.NewServeMux()
	mux.HandleFunc("/b1s/v1/Login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "B1SESSION", Value: "it-session", Path: "/b1s/v1"})
		_, _ = w.Write([]byte(`{"SessionId":"it-session","SessionTimeout":30}`))
	})
	mux.HandleFunc("/b1s/v1/", func(w http.ResponseWriter, r *http.Request) {
		if sl.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body string
		switch r.URL.Path {
		case "/b1s/v1/SQLQueries('query2')/List":
			body = sl.items.Load().(string)
		case "/b1s/v1/ItemGroups":
			body = `[{"Number":100,"GroupName":"Items"},{"Number":101,"GroupName":"Passives"}]`
		case "/b1s/v1/Manufacturers":
			body = `[{"Code":-1,"ManufacturerName":"- No Manufacturer -"},{"Code":7,"ManufacturerName":"Murata"}]`
		case "/b1s/v1/BusinessPartners":
			body = sl.partners[r.URL.Query().Get("$filter")]
			if body == "" {
				body = `[]`
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{"value": json.RawMessage(body)})
	})
	sl.Server = httptest.NewServer(mux)
	t.Cleanup(sl.Close)
	return sl
}

func (sl *serviceLayer) remote(t *testing.T) *sap.RemoteSource {
	t.Helper()
	client, err := sap.NewClient(&sap.Config{
		BaseURL:   sl.URL + "/b1s/v1",
		CompanyDB: "SBODEMO",
		Username:  "manager",
		Password:  "secret",
		Timeout:   5 * time.Second,
		PageSize:  100,
	}, sap.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	require.NoError(t, err)
	return sap.NewRemoteSource(client)
}
