package emailjs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/config"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErr    bool
		wantParams map[string]string
	}{
		{name: "ok", status: http.StatusOK, wantParams: map[string]string{"patient_name": "Ali"}},
		{name: "rejected", status: http.StatusBadRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sendRequest
			var path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("OK"))
			}))
			defer srv.Close()

			c := NewClient(config.EmailJSConfig{
				BaseURL:    srv.URL,
				ServiceID:  "svc",
				TemplateID: "tpl",
				PublicKey:  "pub",
			})
			err := c.Send(context.Background(), map[string]string{"patient_name": "Ali"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "/email/send", path)
			assert.Equal(t, "svc", got.ServiceID)
			assert.Equal(t, "tpl", got.TemplateID)
			assert.Equal(t, "pub", got.UserID)
			assert.Equal(t, tt.wantParams, got.TemplateParams)
		})
	}
}

func TestSendWithoutCredentials(t *testing.T) {
	c := NewClient(config.EmailJSConfig{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.Send(context.Background(), nil), ErrMissingCredentials)
}
