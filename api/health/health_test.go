// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var errUnhealthy = errors.New("unhealthy")

type checkerFunc func(context.Context) (interface{}, error)

func (f checkerFunc) HealthCheck(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantFail   float64
	}{
		{
			name:       "healthy",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unhealthy",
			err:        errUnhealthy,
			wantStatus: http.StatusServiceUnavailable,
			wantFail:   1,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			checker := checkerFunc(func(context.Context) (interface{}, error) {
				return map[string]interface{}{"state": "NormalOp"}, test.err
			})
			h, err := NewHandler(checker, prometheus.NewRegistry(), log.NewNoOpLogger())
			require.NoError(err)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(test.wantStatus, w.Code)

			var reply Reply
			require.NoError(json.NewDecoder(w.Body).Decode(&reply))
			require.Equal(test.err == nil, reply.Healthy)
			require.Equal(map[string]interface{}{"state": "NormalOp"}, reply.Details)
			require.Equal(test.wantFail, testutil.ToFloat64(h.(*handler).metrics.failing))
		})
	}
}

func TestHandlerRejectsPost(t *testing.T) {
	require := require.New(t)

	h, err := NewHandler(checkerFunc(func(context.Context) (interface{}, error) {
		return nil, nil
	}), prometheus.NewRegistry(), log.NewNoOpLogger())
	require.NoError(err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(http.StatusMethodNotAllowed, w.Code)
}
