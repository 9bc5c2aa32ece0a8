package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwilioTest(t *testing.T, handler http.HandlerFunc) (*TwilioClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewTwilioClient(TwilioConfig{
		BaseURL:    server.URL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "whatsapp:+14155238886",
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
	require.NoError(t, err)
	return client, server
}

func TestTwilioClient_SendWhatsApp(t *testing.T) {
	var captured *http.Request
	var form map[string][]string
	client, _ := newTwilioTest(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	err := client.SendWhatsApp(context.Background(), "whatsapp:+919876543210", "hello")
	require.NoError(t, err)

	assert.Equal(t, "/Accounts/AC123/Messages.json", captured.URL.Path)
	user, pass, ok := captured.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret", pass)

	assert.Equal(t, []string{"whatsapp:+14155238886"}, form["From"])
	assert.Equal(t, []string{"whatsapp:+919876543210"}, form["To"])
	assert.Equal(t, []string{"hello"}, form["Body"])
}

func TestTwilioClient_RetriesServerErrors(t *testing.T) {
	attempts := 0
	client, _ := newTwilioTest(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	err := client.SendWhatsApp(context.Background(), "whatsapp:+919876543210", "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestTwilioClient_ClientErrorIsTerminal(t *testing.T) {
	attempts := 0
	client, _ := newTwilioTest(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid 'To' number"}`))
	})

	err := client.SendWhatsApp(context.Background(), "whatsapp:bad", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Contains(t, err.Error(), "invalid 'To' number")
	assert.Equal(t, 1, attempts, "4xx responses must not be retried")
}

func TestTwilioClient_ValidatesInput(t *testing.T) {
	client, _ := newTwilioTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	assert.Error(t, client.SendWhatsApp(context.Background(), "", "hello"))
	assert.Error(t, client.SendWhatsApp(context.Background(), "whatsapp:+911", ""))
}

func TestNewTwilioClient_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioClient(TwilioConfig{AuthToken: "x", From: "y"})
	assert.Error(t, err)
	_, err = NewTwilioClient(TwilioConfig{AccountSID: "x", From: "y"})
	assert.Error(t, err)
	_, err = NewTwilioClient(TwilioConfig{AccountSID: "x", AuthToken: "y"})
	assert.Error(t, err)
}
