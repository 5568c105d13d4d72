package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/core/domain"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/security"
	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/usecase"
)

type fakeLoginCodes struct {
	issued  *usecase.LoginCodeIssued
	result  *usecase.LoginCodeResult
	err     error
	request usecase.LoginCodeRequest
	check   usecase.LoginCodeCheck
}

func (f *fakeLoginCodes) RequestCode(_ context.Context, req usecase.LoginCodeRequest) (*usecase.LoginCodeIssued, error) {
	f.request = req
	return f.issued, f.err
}

func (f *fakeLoginCodes) CheckCode(_ context.Context, in usecase.LoginCodeCheck) (*usecase.LoginCodeResult, error) {
	f.check = in
	return f.result, f.err
}

type fakePasswordLogin struct {
	result *usecase.LoginResult
	err    error
	input  usecase.PasswordLoginInput
}

func (f *fakePasswordLogin) Login(_ context.Context, in usecase.PasswordLoginInput) (*usecase.LoginResult, error) {
	f.input = in
	return f.result, f.err
}

type fakeTokens struct {
	token        string
	verification domain.TokenVerification
	err          error
	kind         domain.TokenKind
	params       security.Params
	rotated      string
}

func (f *fakeTokens) Issue(_ context.Context, kind domain.TokenKind, params security.Params) (string, error) {
	f.kind = kind
	f.params = params
	return f.token, f.err
}

func (f *fakeTokens) Verify(_ context.Context, kind domain.TokenKind, _ string, params security.Params) (domain.TokenVerification, error) {
	f.kind = kind
	f.params = params
	return f.verification, f.err
}

func (f *fakeTokens) RotateAutoLoginSalt(_ context.Context, personID string) error {
	f.rotated = personID
	return f.err
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:5555"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

