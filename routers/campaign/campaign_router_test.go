package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	controllers "campaign_workflow/controllers/campaign"
	"campaign_workflow/models"
	"campaign_workflow/services/versionstore"
	"campaign_workflow/services/workflow"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type testServer struct {
	router *gin.Engine
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	store := versionstore.NewStore(versionstore.NewMemoryRepository())
	service := workflow.NewService(store, zerolog.Nop(),
		workflow.WithIdempotencyGuard(workflow.NewMemoryIdempotencyGuard(time.Hour)))

	router := gin.New()
	MapCampaignRoutes(router, controllers.NewController(service))
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(controllers.HeaderTenantID, "tenant-1")
	req.Header.Set(controllers.HeaderUserID, "user-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func (s *testServer) createCampaign(t *testing.T) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/campaigns", map[string]string{"name": "Spring launch"}, nil)
	expectStatus(t, rr, http.StatusCreated)
	var c models.Campaign
	decode(t, rr, &c)
	return c.ID
}

func TestRequiresIdentityHeaders(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	req.Header.Set(controllers.HeaderTenantID, "tenant-1")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusUnauthorized)

	var body map[string]string
	decode(t, rr, &body)
	if body["code"] != "unauthenticated" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	s := newTestServer()
	id := s.createCampaign(t)
	base := "/api/v1/campaigns/" + id

	rr := s.do(t, http.MethodPost, base+"/strategy-versions", models.StrategyPayload{Platforms: []string{"Instagram"}, DurationDays: 14}, nil)
	expectStatus(t, rr, http.StatusCreated)
	var sv models.StrategyVersion
	decode(t, rr, &sv)
	if sv.Version != 1 || sv.Platforms[0] != "instagram" {
		t.Fatalf("unexpected strategy version %#v", sv)
	}

	rr = s.do(t, http.MethodPost, base+"/sections/strategy/approve", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var approved struct {
		Section  string                `json:"section"`
		Approval models.ApprovalStatus `json:"approval"`
	}
	decode(t, rr, &approved)
	if approved.Section != "strategy" || approved.Approval.Status != models.ApprovalApproved || approved.Approval.ApprovedBy != "user-1" {
		t.Fatalf("unexpected approval %#v", approved)
	}

	rr = s.do(t, http.MethodPost, base+"/strategy-versions", models.StrategyPayload{Platforms: []string{"tiktok"}, DurationDays: 14}, nil)
	expectStatus(t, rr, http.StatusCreated)

	rr = s.do(t, http.MethodPost, base+"/rollback", map[string]interface{}{"target_revision": 3, "note": "undo"}, nil)
	expectStatus(t, rr, http.StatusOK)
	var rolled models.Campaign
	decode(t, rr, &rolled)
	if rolled.Revision != 5 || rolled.ActiveStrategy().Version != 1 || rolled.ApprovalStates.Get(models.SectionStrategy).Status != models.ApprovalApproved {
		t.Fatalf("unexpected campaign after rollback: revision %d", rolled.Revision)
	}

	rr = s.do(t, http.MethodGet, base+"/revisions", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var revisions struct {
		Revisions []models.RevisionEntry `json:"revisions"`
		Total     int                    `json:"total"`
	}
	decode(t, rr, &revisions)
	if revisions.Total != 5 || revisions.Revisions[4].Change.Kind != models.ChangeRolledBack {
		t.Fatalf("unexpected revisions %#v", revisions)
	}

	rr = s.do(t, http.MethodGet, base+"/revisions/4", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var atFour models.Campaign
	decode(t, rr, &atFour)
	if atFour.Revision != 4 || atFour.ActiveStrategy().Version != 2 {
		t.Fatalf("unexpected campaign at revision 4: %d", atFour.Revision)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer()
	id := s.createCampaign(t)
	base := "/api/v1/campaigns/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown campaign", http.MethodGet, "/api/v1/campaigns/missing", nil, http.StatusNotFound, "not_found"},
		{"invalid strategy", http.MethodPost, base + "/strategy-versions", models.StrategyPayload{DurationDays: 3}, http.StatusBadRequest, "invalid_payload"},
		{"approve without strategy", http.MethodPost, base + "/sections/strategy/approve", nil, http.StatusConflict, "illegal_transition"},
		{"reject without reason", http.MethodPost, base + "/sections/strategy/reject", map[string]string{}, http.StatusBadRequest, "invalid_payload"},
		{"unknown section", http.MethodPost, base + "/sections/budget/approve", nil, http.StatusBadRequest, "invalid_payload"},
		{"rollback out of range", http.MethodPost, base + "/rollback", map[string]int{"target_revision": 9}, http.StatusNotFound, "not_found"},
		{"non numeric revision", http.MethodGet, base + "/revisions/latest", nil, http.StatusBadRequest, "invalid_payload"},
		{"publish too early", http.MethodPost, base + "/publish", nil, http.StatusConflict, "illegal_transition"},
		{"replace asset missing url", http.MethodPost, base + "/assets/replace", map[string]string{"old_url": "a.png"}, http.StatusBadRequest, "invalid_payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, tt.body, nil)
			expectStatus(t, rr, tt.status)
			var body map[string]string
			decode(t, rr, &body)
			if body["code"] != tt.code || body["error"] == "" {
				t.Fatalf("unexpected error body %v", body)
			}
		})
	}
}

func TestIdempotencyKeyHeader(t *testing.T) {
	s := newTestServer()
	headers := map[string]string{controllers.HeaderIdempotencyKey: "create-once"}

	rr := s.do(t, http.MethodPost, "/api/v1/campaigns", map[string]string{"name": "x"}, headers)
	expectStatus(t, rr, http.StatusCreated)
	rr = s.do(t, http.MethodPost, "/api/v1/campaigns", map[string]string{"name": "x"}, headers)
	expectStatus(t, rr, http.StatusConflict)

	var body map[string]string
	decode(t, rr, &body)
	if body["code"] != "duplicate_request" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListAndStatistics(t *testing.T) {
	s := newTestServer()
	for i := 0; i < 3; i++ {
		s.createCampaign(t)
	}

	rr := s.do(t, http.MethodGet, "/api/v1/campaigns?page=1&page_size=2", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var page versionstore.Page
	decode(t, rr, &page)
	if page.Total != 3 || len(page.Items) != 2 || page.PageSize != 2 {
		t.Fatalf("unexpected page %#v", page)
	}

	rr = s.do(t, http.MethodGet, "/api/v1/campaigns?status=published", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	decode(t, rr, &page)
	if page.Total != 0 || page.Items == nil {
		t.Fatalf("expected an empty, non-null page, got %#v", page)
	}

	rr = s.do(t, http.MethodGet, "/api/v1/campaigns/stats", nil, nil)
	expectStatus(t, rr, http.StatusOK)
	var stats versionstore.Statistics
	decode(t, rr, &stats)
	if stats.Total != 3 || stats.ByStatus[models.CampaignStatusDraft] != 3 {
		t.Fatalf("unexpected stats %#v", stats)
	}

	// Another tenant sees nothing.
	rr = s.do(t, http.MethodGet, "/api/v1/campaigns", nil, map[string]string{controllers.HeaderTenantID: "tenant-2"})
	expectStatus(t, rr, http.StatusOK)
	decode(t, rr, &page)
	if page.Total != 0 {
		t.Fatalf("tenant-2 sees %d campaigns", page.Total)
	}
}

func TestScheduleAndAssetEndpoints(t *testing.T) {
	s := newTestServer()
	id := s.createCampaign(t)
	base := "/api/v1/campaigns/" + id

	expectStatus(t, s.do(t, http.MethodPost, base+"/strategy-versions", models.StrategyPayload{Platforms: []string{"instagram"}, DurationDays: 7}, nil), http.StatusCreated)
	rr := s.do(t, http.MethodPost, base+"/content-versions", models.ContentPayload{Mode: "manual", ImageURLs: []string{"https://cdn/a.png"}}, nil)
	expectStatus(t, rr, http.StatusCreated)
	var cv models.ContentVersion
	decode(t, rr, &cv)
	if cv.Version != 1 || cv.StrategyVersion != 1 {
		t.Fatalf("unexpected content version %#v", cv)
	}

	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	rr = s.do(t, http.MethodPut, base+"/schedule", models.SchedulePayload{Slots: []models.ScheduleSlotInput{{ScheduledAt: at, Platform: "instagram"}}}, nil)
	expectStatus(t, rr, http.StatusOK)
	var schedule struct {
		Schedule []models.ScheduleSlot `json:"schedule"`
	}
	decode(t, rr, &schedule)
	if len(schedule.Schedule) != 1 || !schedule.Schedule[0].ScheduledAt.Equal(at) {
		t.Fatalf("unexpected schedule %#v", schedule)
	}

	rr = s.do(t, http.MethodPost, base+"/assets/replace", map[string]interface{}{"old_url": "https://cdn/a.png", "new_url": "https://cdn/b.png"}, nil)
	expectStatus(t, rr, http.StatusOK)
	var asset models.AssetRef
	decode(t, rr, &asset)
	if asset.URL != "https://cdn/b.png" || fmt.Sprint(asset.ContentVersions) != "[1]" {
		t.Fatalf("unexpected asset %#v", asset)
	}
}
