package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppClientSend(t *testing.T) {
	var got sendTextRequest
	var gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/send/text", r.URL.Path)
		gotToken = r.Header.Get("token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendTextResponse{Success: true})
	}))
	defer srv.Close()

	c, err := NewWhatsAppClient(srv.URL, "secret", "inst-1")
	require.NoError(t, err)

	expires := time.Date(2025, 3, 10, 19, 25, 0, 0, time.UTC)
	err = c.Send(context.Background(), Message{
		To:           "4155550100",
		Body:         "A table just opened up",
		Conversation: ConversationWaitlistOffer,
		ExpiresAt:    &expires,
	})
	require.NoError(t, err)

	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "4155550100", got.Phone)
	assert.Equal(t, "A table just opened up", got.Body)
	assert.Equal(t, string(ConversationWaitlistOffer), got.Conversation)
	assert.Equal(t, "inst-1", got.InstanceID)
	assert.Equal(t, expires.Unix(), got.ExpiresAt)
}

func TestWhatsAppClientSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewWhatsAppClient(srv.URL, "bad", "")
	require.NoError(t, err)

	err = c.Send(context.Background(), Message{To: "4155550100", Body: "hi", Conversation: ConversationReservationConfirmation})
	assert.Error(t, err)
}

func TestWhatsAppClientSendApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendTextResponse{Success: false, Message: "not connected"})
	}))
	defer srv.Close()

	c, err := NewWhatsAppClient(srv.URL, "secret", "")
	require.NoError(t, err)

	err = c.Send(context.Background(), Message{To: "4155550100", Body: "hi", Conversation: ConversationReservationConfirmation})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestWhatsAppClientValidatesConfig(t *testing.T) {
	_, err := NewWhatsAppClient("", "token", "")
	assert.Error(t, err)
	_, err = NewWhatsAppClient("http://localhost", "", "")
	assert.Error(t, err)
}
