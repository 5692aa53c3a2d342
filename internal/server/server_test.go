package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geolote/internal/export"
	"github.com/sells-group/geolote/internal/resolver"
	"github.com/sells-group/geolote/internal/store"
	"github.com/sells-group/geolote/pkg/geocode"
)

var exactCandidate = geocode.Candidate{
	Label:    "Rua RC 11, Quadra 5, Lote 7, Setor Central, Goiânia - GO, Brasil",
	Street:   "Rua RC 11",
	District: "Setor Central",
	City:     "Goiânia",
	Position: geocode.Position{Lat: -16.6869, Lng: -49.2648},
}

func fakeClient() geocode.Client {
	return geocode.ClientFunc(func(_ context.Context, q string) ([]geocode.Candidate, geocode.Status) {
		if strings.HasPrefix(q, "RUA RC-011, 5-7") {
			return []geocode.Candidate{exactCandidate}, geocode.StatusOK
		}
		return nil, geocode.StatusNotFound
	})
}

func newTestServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	client := fakeClient()
	res := resolver.New(client, nil, nil, nil, resolver.WithMaxOffset(0), resolver.WithDefaultCity("Goiânia"))
	srv := httptest.NewServer(New(Config{}, res, client, st).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Rota")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sh.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

var routeRows = [][]string{
	{"Stop", "Destination Address", "Bairro", "City", "Zipcode/Postal code"},
	{"1", "Rua RC 11 Qd 5 Lt 7", "Setor Central", "Goiânia", "74000-000"},
	{"2", "Condomínio Alphaville", "", "Goiânia", "74000-001"},
	{"3", "Rua Inexistente Qd 1 Lt 1", "", "", "74000-002"},
}

func upload(t *testing.T, srv *httptest.Server, query, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/upload"+query, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestUpload_JSON(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := upload(t, srv, "", "rota.xlsx", workbook(t, routeRows))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Batch-Id"))

	body := decode(t, resp)
	assert.Equal(t, resp.Header.Get("X-Batch-Id"), body["batch_id"])
	assert.InDelta(t, 3, body["rows"], 0)

	data := body["data"].([]any)
	require.Len(t, data, 3)

	first := data[0].(map[string]any)
	assert.Equal(t, "1", first["Stop"])
	assert.Equal(t, "74000-000", first["Zipcode/Postal code"])
	assert.InDelta(t, -16.6869, first["Geo_Latitude"], 1e-9)
	assert.Equal(t, false, first["Partial_Match"])
	assert.Equal(t, "EXACT_MATCH", first["Status_Log"])
	assert.Equal(t, "RUA RC-011, 5-7", first["Normalized_Address"])

	condo := data[1].(map[string]any)
	assert.Equal(t, true, condo["Cond_Match"])
	assert.Equal(t, "", condo["Geo_Latitude"])

	failed := data[2].(map[string]any)
	assert.Equal(t, "Não encontrado", failed["Geo_Latitude"])
	assert.Equal(t, "FAILED", failed["Status_Log"])

	summary := body["summary"].(map[string]any)
	assert.InDelta(t, 1, summary["found"], 0)
	assert.InDelta(t, 1, summary["condominium"], 0)
	assert.InDelta(t, 1, summary["not_found"], 0)
}

func TestUpload_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name     string
		query    string
		filename string
		data     []byte
		want     int
	}{
		{"missing column", "", "rota.xlsx", workbook(t, [][]string{{"Endereco"}, {"Rua 1"}}), http.StatusUnprocessableEntity},
		{"unreadable workbook", "", "rota.xlsx", []byte("not a workbook"), http.StatusBadRequest},
		{"no file", "", "", nil, http.StatusBadRequest},
		{"unknown format", "?format=pdf", "rota.xlsx", workbook(t, routeRows), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, srv, tt.query, tt.filename, tt.data)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decode(t, resp)["error"])
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	client := fakeClient()
	res := resolver.New(client, nil, nil, nil)
	h := New(Config{MaxUploadBytes: 64}, res, client, nil).Handler()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "rota.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(workbook(t, routeRows))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_CircuitExport(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := upload(t, srv, "?format=circuit", "rota.xlsx", workbook(t, routeRows))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rota_CIRCUIT.csv")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Geo_Latitude,Observacoes\n-16.6869, -49.2648,\"1 - Quadra:5 - Lote:7\"\n", buf.String())
}

func TestUpload_XLSXExport(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := upload(t, srv, "?format=xlsx", "rota.xlsx", workbook(t, routeRows))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	var names []string
	for _, sh := range f.Sheets {
		names = append(names, sh.Name)
	}
	assert.Equal(t, []string{export.SheetFound, export.SheetCondominium, export.SheetNotFound}, names)
}

func TestUpload_GeoJSONNothingLocated(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := upload(t, srv, "?format=geojson", "rota.xlsx", workbook(t, [][]string{
		{"Destination Address"},
		{"Rua Inexistente Qd 1 Lt 1"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUpload_PersistsExactMatches(t *testing.T) {
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "srv.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	srv := newTestServer(t, st)

	resp := upload(t, srv, "", "rota.xlsx", workbook(t, routeRows))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, err := st.Get(context.Background(), "RUA RC-011, 5-7")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "EXACT_MATCH", rec.Status)
}

func TestSaveAddress(t *testing.T) {
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "fix.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	srv := newTestServer(t, st)

	form := url.Values{
		"endereco_normalizado": {"RUA RC-011, 5-7"},
		"bairro":               {"Setor Central"},
		"cidade":               {"Goiânia"},
		"lat":                  {"-16.6869"},
		"lng":                  {"-49.2648"},
	}

	resp, err := http.PostForm(srv.URL+"/addresses", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "inserted", body["status"])
	assert.Equal(t, "MANUAL_FIX", body["record"].(map[string]any)["status"])

	resp2, err := http.PostForm(srv.URL+"/salvar_endereco_editado", form)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "existing", decode(t, resp2)["status"])

	payload := `{"endereco_normalizado":"RUA NOVA, 1-2","bairro":"Centro","cidade":"Goiânia","lat":-16.1,"lng":-49.1}`
	resp3, err := http.Post(srv.URL+"/addresses", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusCreated, resp3.StatusCode)
}

func TestSaveAddress_Validation(t *testing.T) {
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "fix.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	srv := newTestServer(t, st)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing address", url.Values{"lat": {"1"}, "lng": {"1"}}, "endereco_normalizado is required"},
		{"bad lat", url.Values{"endereco_normalizado": {"RUA A"}, "lat": {"x"}, "lng": {"1"}}, "lat must be a number"},
		{"lat out of range", url.Values{"endereco_normalizado": {"RUA A"}, "lat": {"91"}, "lng": {"1"}}, "lat must be between"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(srv.URL+"/addresses", tt.form)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decode(t, resp)["error"], tt.want)
		})
	}
}

func TestSaveAddress_NoStore(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.PostForm(srv.URL+"/addresses", url.Values{"endereco_normalizado": {"RUA A"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGeocode(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/geocode?q=" + url.QueryEscape("RUA RC-011, 5-7, Goiânia"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "OK", body["status"])
	cands := body["candidates"].([]any)
	require.Len(t, cands, 1)
	assert.Equal(t, exactCandidate.Label, cands[0].(map[string]any)["label"])

	resp2, err := http.Get(srv.URL + "/geocode")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestNormalize(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/normalize?address=" + url.QueryEscape("Rua RC 11 Qd 5 Lt 7") + "&bairro=Centro")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "RUA RC-011, 5-7", body["normalized"])
	assert.Equal(t, "5", body["quadra"])
	assert.Equal(t, "7", body["lote"])
	assert.Equal(t, false, body["condominium"])

	resp2, err := http.Get(srv.URL + "/normalize?address=nan")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body = decode(t, resp2)
	assert.Equal(t, "", body["normalized"])
	assert.NotEmpty(t, body["error"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
