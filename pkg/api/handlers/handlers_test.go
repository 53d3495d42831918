package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/leadboard/leadboard/pkg/crmsync"
	"github.com/leadboard/leadboard/pkg/importer"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/notify"
	"github.com/leadboard/leadboard/pkg/optimistic"
	"github.com/leadboard/leadboard/pkg/ordering"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/stages"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/leadboard/leadboard/pkg/tableconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// okSyncClient accepts every lead
type okSyncClient struct{}

func (okSyncClient) Sync(ctx context.Context, lead schema.Lead) error { return nil }

// setupHandlersTest wires every handler over a shared in-memory store
func setupHandlersTest(t *testing.T) (store.Store, *LeadHandler, *StageHandler, *ConfigHandler) {
	mem := store.NewMemory()
	log := logger.New("error")
	notifier := notify.NewLog(log)

	leadService := leads.NewService(mem, nil, log, "US")
	stageService := stages.NewService(mem, log)
	configService := tableconfig.NewService(mem, nil, log)
	orderingController := ordering.NewController(mem, configService, log)
	boards := optimistic.NewManager(mem, notifier, log)
	leadService.AttachBoards(boards)
	stageService.AttachBoards(boards)
	syncService := crmsync.NewService(okSyncClient{}, leadService, log)

	leadHandler := NewLeadHandler(leadService, boards, syncService)
	stageHandler := NewStageHandler(stageService, orderingController)
	configHandler := NewConfigHandler(configService, orderingController)
	return mem, leadHandler, stageHandler, configHandler
}

// newJSONContext builds an echo context carrying the authenticated user
func newJSONContext(t *testing.T, method, target string, body any) (echo.Context, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.UserIDKey, "user-1")
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func TestCreateLead_Success(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{
		"title":        "Acme Plumbing",
		"phone_number": "(212) 555-2368",
	})
	require.NoError(t, leadHandler.CreateLead(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	response := decodeBody(t, rec)
	assert.Equal(t, "Acme Plumbing", response["title"])
	assert.Equal(t, "new", response["status"])
	assert.Equal(t, "+12125552368", response["phone_number"])
}

func TestCreateLead_MissingTitle(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{"email": "x@y.com"})
	require.NoError(t, leadHandler.CreateLead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLeads_ScopedToUser(t *testing.T) {
	mem, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{"title": "Mine"})
	require.NoError(t, leadHandler.CreateLead(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	err := mem.Insert(context.Background(), "leads", []store.Row{{
		"user_id": "someone-else",
		"title":   "Not mine",
	}})
	require.NoError(t, err)

	c, rec = newJSONContext(t, http.MethodGet, "/leads", nil)
	require.NoError(t, leadHandler.ListLeads(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	response := decodeBody(t, rec)
	assert.Equal(t, float64(1), response["total"])
}

func TestGetLead_NotFound(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodGet, "/leads/missing", nil)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	require.NoError(t, leadHandler.GetLead(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMoveLead_UpdatesStatus(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{"title": "Acme"})
	require.NoError(t, leadHandler.CreateLead(c))
	created := decodeBody(t, rec)
	leadID := created["id"].(string)

	c, rec = newJSONContext(t, http.MethodPost, "/leads/move", map[string]any{
		"lead_id":      leadID,
		"target_stage": "contacted",
	})
	require.NoError(t, leadHandler.MoveLead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newJSONContext(t, http.MethodGet, "/leads/"+leadID, nil)
	c.SetParamNames("id")
	c.SetParamValues(leadID)
	require.NoError(t, leadHandler.GetLead(c))
	assert.Equal(t, "contacted", decodeBody(t, rec)["status"])
}

func TestBulkSetStage(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	var ids []string
	for _, title := range []string{"One", "Two", "Three"} {
		c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{"title": title})
		require.NoError(t, leadHandler.CreateLead(c))
		ids = append(ids, decodeBody(t, rec)["id"].(string))
	}

	c, rec := newJSONContext(t, http.MethodPost, "/leads/bulk/stage", map[string]any{
		"ids":    ids[:2],
		"status": "qualified",
	})
	require.NoError(t, leadHandler.BulkSetStage(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newJSONContext(t, http.MethodGet, "/leads", nil)
	require.NoError(t, leadHandler.ListLeads(c))
	response := decodeBody(t, rec)

	qualified := 0
	for _, item := range response["leads"].([]any) {
		if item.(map[string]any)["status"] == "qualified" {
			qualified++
		}
	}
	assert.Equal(t, 2, qualified)
}

func TestBulkSetStage_EmptyIDs(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads/bulk/stage", map[string]any{
		"ids":    []string{},
		"status": "qualified",
	})
	require.NoError(t, leadHandler.BulkSetStage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncLead_MarksSynced(t *testing.T) {
	_, leadHandler, _, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/leads", map[string]any{"title": "Acme"})
	require.NoError(t, leadHandler.CreateLead(c))
	leadID := decodeBody(t, rec)["id"].(string)

	c, rec = newJSONContext(t, http.MethodPost, "/leads/"+leadID+"/sync", nil)
	c.SetParamNames("id")
	c.SetParamValues(leadID)
	require.NoError(t, leadHandler.SyncLead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newJSONContext(t, http.MethodGet, "/leads/"+leadID, nil)
	c.SetParamNames("id")
	c.SetParamValues(leadID)
	require.NoError(t, leadHandler.GetLead(c))
	assert.Equal(t, true, decodeBody(t, rec)["synced"])
}

func TestCreateStage_And_List(t *testing.T) {
	_, _, stageHandler, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/stages", map[string]any{"label": "Follow Up"})
	require.NoError(t, stageHandler.CreateStage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "follow_up", decodeBody(t, rec)["name"])

	c, rec = newJSONContext(t, http.MethodGet, "/stages", nil)
	require.NoError(t, stageHandler.ListStages(c))
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])
}

func TestCreateStage_DuplicateName(t *testing.T) {
	_, _, stageHandler, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/stages", map[string]any{"label": "Won"})
	require.NoError(t, stageHandler.CreateStage(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newJSONContext(t, http.MethodPost, "/stages", map[string]any{"label": "Won"})
	require.NoError(t, stageHandler.CreateStage(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteStage_InUse(t *testing.T) {
	mem, _, stageHandler, _ := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/stages", map[string]any{"label": "Contacted"})
	require.NoError(t, stageHandler.CreateStage(c))
	stageID := decodeBody(t, rec)["id"].(string)

	err := mem.Insert(context.Background(), "leads", []store.Row{{
		"user_id": "user-1",
		"title":   "Blocking lead",
		"status":  "contacted",
	}})
	require.NoError(t, err)

	c, rec = newJSONContext(t, http.MethodDelete, "/stages/"+stageID, nil)
	c.SetParamNames("id")
	c.SetParamValues(stageID)
	require.NoError(t, stageHandler.DeleteStage(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "stage_in_use", decodeBody(t, rec)["error"])
}

func TestReorderStages_Handler(t *testing.T) {
	_, _, stageHandler, _ := setupHandlersTest(t)

	for _, label := range []string{"New", "Contacted", "Won"} {
		c, rec := newJSONContext(t, http.MethodPost, "/stages", map[string]any{"label": label})
		require.NoError(t, stageHandler.CreateStage(c))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	c, rec := newJSONContext(t, http.MethodPost, "/stages/reorder", map[string]any{
		"from_index": 2,
		"to_index":   0,
	})
	require.NoError(t, stageHandler.ReorderStages(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	reordered := decodeBody(t, rec)["stages"].([]any)
	assert.Equal(t, "won", reordered[0].(map[string]any)["name"])

	c, rec = newJSONContext(t, http.MethodPost, "/stages/reorder", map[string]any{
		"from_index": 9,
		"to_index":   0,
	})
	require.NoError(t, stageHandler.ReorderStages(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConfig_Defaults(t *testing.T) {
	_, _, _, configHandler := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodGet, "/config/leads", nil)
	c.SetParamNames("table")
	c.SetParamValues("leads")
	require.NoError(t, configHandler.GetConfig(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	response := decodeBody(t, rec)
	assert.NotEmpty(t, response["visible_columns"])
	assert.NotEmpty(t, response["column_order"])
}

func TestAddCustomField_Handler(t *testing.T) {
	_, _, _, configHandler := setupHandlersTest(t)

	c, rec := newJSONContext(t, http.MethodPost, "/config/leads/fields", map[string]any{
		"label": "Contract Value",
		"type":  "currency",
	})
	c.SetParamNames("table")
	c.SetParamValues("leads")
	require.NoError(t, configHandler.AddCustomField(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "contract_value", decodeBody(t, rec)["key"])

	c, rec = newJSONContext(t, http.MethodPost, "/config/leads/fields", map[string]any{
		"label": "Contract Value",
		"type":  "nonsense",
	})
	c.SetParamNames("table")
	c.SetParamValues("leads")
	require.NoError(t, configHandler.AddCustomField(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// stubSearchClient returns a fixed result set
type stubSearchClient struct {
	records []map[string]any
}

func (s stubSearchClient) Search(ctx context.Context, keyword string, lat, lng, radiusKm float64) ([]map[string]any, error) {
	return s.records, nil
}

func TestRadarSearch_InfersFromFirstRecord(t *testing.T) {
	importService := importer.NewService(store.NewMemory(), logger.New("error"), "US")
	handler := NewImportHandler(importService, stubSearchClient{records: []map[string]any{
		{"Name": "Acme Bakery", "Phone": "312 555 0100"},
		{"Name": "Beta Gym", "Website": "beta.example"},
	}})

	c, rec := newJSONContext(t, http.MethodPost, "/radar/search", map[string]any{
		"keyword": "bakery",
		"lat":     4.711,
		"lng":     -74.072,
		"radius":  5,
	})
	require.NoError(t, handler.RadarSearch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	response := decodeBody(t, rec)
	inferred := response["mapping"].(map[string]any)
	assert.Equal(t, "title", inferred["Name"])
	assert.Equal(t, "phone_number", inferred["Phone"])

	// Keys absent from the first record are not part of the proposal
	_, present := inferred["Website"]
	assert.False(t, present)
	assert.Equal(t, float64(2), response["total"])
}
