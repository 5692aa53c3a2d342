package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/geolote/internal/export"
	"github.com/sells-group/geolote/internal/model"
	"github.com/sells-group/geolote/internal/resolver"
	"github.com/sells-group/geolote/internal/sheet"
	"github.com/sells-group/geolote/internal/store"
)

// Upload output formats.
const (
	FormatJSON    = "json"
	FormatXLSX    = "xlsx"
	FormatGeoJSON = "geojson"
	FormatCircuit = "circuit"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type uploadResponse struct {
	BatchID  string           `json:"batch_id"`
	Filename string           `json:"filename"`
	Rows     int              `json:"rows"`
	Summary  resolver.Summary `json:"summary"`
	Data     []map[string]any `json:"data"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatXLSX, FormatGeoJSON, FormatCircuit:
	default:
		writeError(w, http.StatusBadRequest, "unsupported format "+strconv.Quote(format))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	tbl, err := sheet.ReadXLSX(data, s.cfg.Sheet)
	if err != nil {
		var be *sheet.BatchError
		if errors.As(err, &be) {
			writeError(w, be.HTTPStatus(), be.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchID := uuid.NewString()
	log := zap.L().With(zap.String("batch_id", batchID), zap.String("filename", header.Filename))
	log.Info("batch received", zap.Int("rows", len(tbl.Records)), zap.String("format", format))

	results, sum := s.resolver.ResolveBatch(r.Context(), tbl.Records, resolver.BatchOptions{
		MaxRows: s.cfg.MaxRows,
		Store:   s.store,
	})
	ds := export.NewDataset(tbl, results)

	w.Header().Set("X-Batch-Id", batchID)
	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	if base == "" || base == "." {
		base = "geolote"
	}

	if format == FormatJSON {
		writeJSON(w, http.StatusOK, uploadResponse{
			BatchID:  batchID,
			Filename: header.Filename,
			Rows:     len(results),
			Summary:  sum,
			Data:     ds.Records(),
		})
		return
	}

	var buf bytes.Buffer
	var contentType, filename string
	switch format {
	case FormatXLSX:
		err = export.WriteXLSX(&buf, ds)
		contentType, filename = xlsxContentType, base+"_geolote.xlsx"
	case FormatGeoJSON:
		err = export.WriteGeoJSON(&buf, ds)
		contentType, filename = "application/geo+json", base+".geojson"
	case FormatCircuit:
		err = export.WriteCircuit(&buf, results)
		contentType, filename = "text/csv; charset=utf-8", base+"_CIRCUIT.csv"
	}
	if errors.Is(err, export.ErrNothingToExport) {
		writeError(w, http.StatusUnprocessableEntity, "no rows eligible for "+format+" export")
		return
	}
	if err != nil {
		log.Warn("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// manualFix is the body of POST /addresses. Field names follow the form the
// review screen posts.
type manualFix struct {
	Normalized   string  `json:"endereco_normalizado"`
	Neighborhood string  `json:"bairro"`
	City         string  `json:"cidade"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
}

type saveResponse struct {
	Status  store.Outcome `json:"status"`
	Message string        `json:"message"`
	Record  *store.Record `json:"record"`
}

func (s *Server) handleSaveAddress(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "address store is not configured")
		return
	}

	fix, err := decodeManualFix(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, rec, err := s.store.Upsert(r.Context(), store.Record{
		Normalized:   fix.Normalized,
		Neighborhood: fix.Neighborhood,
		City:         fix.City,
		Lat:          fix.Lat,
		Lng:          fix.Lng,
		Status:       string(model.StatusManualFix),
	})
	if err != nil {
		zap.L().Warn("manual fix not stored", zap.String("normalized", fix.Normalized), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store address")
		return
	}

	if outcome == store.OutcomeExisting {
		writeJSON(w, http.StatusOK, saveResponse{Status: outcome, Message: "address already exists", Record: rec})
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{Status: outcome, Message: "address stored", Record: rec})
}

func decodeManualFix(r *http.Request) (manualFix, error) {
	var fix manualFix
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
			return fix, errors.New("invalid request body")
		}
	} else {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return fix, errors.New("invalid form body")
		}
		fix.Normalized = r.FormValue("endereco_normalizado")
		fix.Neighborhood = r.FormValue("bairro")
		fix.City = r.FormValue("cidade")

		var err error
		if fix.Lat, err = strconv.ParseFloat(strings.TrimSpace(r.FormValue("lat")), 64); err != nil {
			return fix, errors.New("lat must be a number")
		}
		if fix.Lng, err = strconv.ParseFloat(strings.TrimSpace(r.FormValue("lng")), 64); err != nil {
			return fix, errors.New("lng must be a number")
		}
	}

	fix.Normalized = strings.TrimSpace(fix.Normalized)
	fix.Neighborhood = strings.TrimSpace(fix.Neighborhood)
	fix.City = strings.TrimSpace(fix.City)

	switch {
	case fix.Normalized == "":
		return fix, errors.New("endereco_normalizado is required")
	case math.IsNaN(fix.Lat) || fix.Lat < -90 || fix.Lat > 90:
		return fix, errors.New("lat must be between -90 and 90")
	case math.IsNaN(fix.Lng) || fix.Lng < -180 || fix.Lng > 180:
		return fix, errors.New("lng must be between -180 and 180")
	}
	return fix, nil
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	cands, status := s.client.Geocode(r.Context(), q)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      q,
		"status":     status,
		"candidates": cands,
	})
}

type normalizeResponse struct {
	Address     string `json:"address"`
	Bairro      string `json:"bairro,omitempty"`
	Normalized  string `json:"normalized"`
	Street      string `json:"street"`
	Quadra      string `json:"quadra"`
	Lote        string `json:"lote"`
	Condominium bool   `json:"condominium"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("address")
	bairro := r.URL.Query().Get("bairro")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	addr, err := s.resolver.Normalizer().Normalize(raw, bairro)
	resp := normalizeResponse{
		Address:     raw,
		Bairro:      bairro,
		Street:      addr.Street,
		Quadra:      addr.Quadra,
		Lote:        addr.Lote,
		Condominium: addr.Condominium,
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Normalized = addr.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
