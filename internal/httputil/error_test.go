package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorStatusCodes(t *testing.T) {
	testCases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: bad fee", bracket.ErrValidation), http.StatusBadRequest, "validation"},
		{fmt.Errorf("get match: %w", bracket.ErrNotFound), http.StatusNotFound, "not_found"},
		{bracket.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: match is pending", bracket.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{bracket.ErrConflict, http.StatusConflict, "conflict"},
		{bracket.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
		{bracket.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{bracket.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{bracket.ErrInvariant, http.StatusInternalServerError, "invariant"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, "operation failed", tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"cup"}`, ""},
		{"empty", ``, "must not be empty"},
		{"unknown field", `{"nope":1}`, "unknown key"},
		{"wrong type", `{"name":5}`, "incorrect JSON type"},
		{"two values", `{"name":"a"}{"name":"b"}`, "single JSON value"},
		{"broken", `{"name":`, "badly-formed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := ReadJSON(httptest.NewRecorder(), req, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "cup", dst.Name)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
