package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"StratEngine/internal/domain/models"
)

func bindURL(t *testing.T, url string, req interface{}) []FieldError {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, url, nil), httptest.NewRecorder())
	return BindQuery(c, req)
}

func TestBindQuery(t *testing.T) {
	var pr models.PlansRequest
	if errs := bindURL(t, "/?symbol=spy", &pr); errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if pr.Limit != 50 || pr.Symbol != "spy" {
		t.Fatalf("request = %+v", pr)
	}

	var pat models.PatternsRequest
	if errs := bindURL(t, "/?symbol=SPY&timeframe=1h", &pat); errs != nil {
		t.Fatalf("alias rejected: %+v", errs)
	}

	cases := []struct {
		url   string
		req   interface{}
		field string
		code  string
	}{
		{"/", &models.SymbolRequest{}, "symbol", "ERR_REQUIRED"},
		{"/?symbol=SPY&timeframe=7m", &models.PatternsRequest{}, "timeframe", "ERR_TIMEFRAME"},
		{"/?symbol=SPY&limit=5000", &models.PlansRequest{}, "limit", "ERR_LTE"},
	}
	for _, tc := range cases {
		errs := bindURL(t, tc.url, tc.req)
		if len(errs) != 1 || errs[0].Field != tc.field || errs[0].Code != tc.code {
			t.Fatalf("%s: errors = %+v", tc.url, errs)
		}
	}

	if errs := bindURL(t, "/?symbol=SPY&limit=abc", &models.PlansRequest{}); len(errs) != 1 || errs[0].Code != "ERR_BIND" {
		t.Fatalf("bind errors = %+v", errs)
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := AppErrorResponse(c, UnknownSymbol("QQQ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	var env struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusNotFound || len(env.Data) != 1 || env.Data[0].Code != CodeUnknownSymbol {
		t.Fatalf("envelope = %+v", env)
	}
}
