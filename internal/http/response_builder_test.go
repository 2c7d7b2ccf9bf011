package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/7").
		Body(map[string]int{"id": 7}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Location"); got != "/api/expenses/7" {
		t.Errorf("Location = %q", got)
	}
	if got := w.Body.String(); got != "{\"id\":7}\n" {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Body(make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		code    int
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest},
		{"Unprocessable", UnprocessableEntityError("bad"), http.StatusUnprocessableEntity},
		{"Internal", InternalServerError("bad"), http.StatusInternalServerError},
		{"NotFound", NotFoundError("bad"), http.StatusNotFound},
		{"Unauthorized", UnauthorizedError("bad"), http.StatusUnauthorized},
		{"TooMany", TooManyRequestsError("bad"), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.code {
				t.Errorf("Status code = %d, want %d", w.Code, tt.code)
			}
			if w.Body.String() != "{\"error\":\"bad\"}\n" {
				t.Errorf("Body = %q", w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	UnauthorizedError("x").Write(w)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header not set")
	}
}
