package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  string
		wantNil  bool
		wantOut  bool
		wantSugg *float64
	}{
		{
			name:   "success_outlier",
			status: http.StatusOK,
			body: `{
				"ref_id": "42", "ref_oem": "OEM-1", "part_type": "MOTOR",
				"price_actual": 150, "price_market": 90, "price_suggested": 95.5,
				"difference_pct": 66.7, "is_outlier": true, "family": "F3"
			}`,
			wantOut:  true,
			wantSugg: floatPtr(95.5),
		},
		{
			name:   "success_no_suggestion",
			status: http.StatusOK,
			body: `{
				"ref_id": "43", "ref_oem": "OEM-2", "part_type": "FARO",
				"price_actual": 20, "price_market": 21, "price_suggested": null,
				"difference_pct": -4.8, "is_outlier": false, "family": ""
			}`,
		},
		{
			name:    "no_data_204",
			status:  http.StatusNoContent,
			wantNil: true,
		},
		{
			name:    "no_data_404",
			status:  http.StatusNotFound,
			body:    `{"error": "reference not found"}`,
			wantNil: true,
		},
		{
			name:    "server_error",
			status:  http.StatusInternalServerError,
			body:    `{"error": "boom"}`,
			wantErr: "unexpected status 500",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/precios/verificar", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req VerifyRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "MOTOR", req.PartType)
				assert.InDelta(t, 12.0, req.OutlierThresholdPct, 0.001)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			res, err := client.Verify(context.Background(), VerifyRequest{
				RefID:               "42",
				RefOEM:              "OEM-1",
				PartType:            "MOTOR",
				Price:               150,
				OutlierThresholdPct: 12.0,
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)

			if tt.wantNil {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, tt.wantOut, res.IsOutlier)
			if tt.wantSugg != nil {
				require.NotNil(t, res.PriceSuggested)
				assert.InDelta(t, *tt.wantSugg, *res.PriceSuggested, 0.001)
			} else {
				assert.Nil(t, res.PriceSuggested)
			}
		})
	}
}

func TestVerifyCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Consume the body so the server notices the client abort.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Verify(ctx, VerifyRequest{RefOEM: "OEM-1", PartType: "MOTOR", OutlierThresholdPct: 12.0})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func floatPtr(f float64) *float64 { return &f }
