package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		switch r.PostForm.Get("response") {
		case "good":
			assert.Equal(t, "203.0.113.7", r.PostForm.Get("remoteip"))
			w.Write([]byte(`{"success":true}`))
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}))
	defer srv.Close()

	v := NewSiteVerifier(srv.URL, "s3cret", time.Second)

	tests := []struct {
		name    string
		token   string
		want    bool
		wantErr bool
	}{
		{"accepted", "good", true, false},
		{"refused", "bad", false, false},
		{"empty token", "", false, false},
		{"provider error", "broken", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(context.Background(), tt.token, "203.0.113.7")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSiteVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewSiteVerifier(url, "s3cret", 200*time.Millisecond).Verify(context.Background(), "good", "")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
