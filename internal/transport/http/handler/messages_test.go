package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/otp-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockMessagingSvc struct{ mock.Mock }

func (m *mockMessagingSvc) SendMessage(ctx context.Context, number, text string) (*domain.DeliveryReceipt, error) {
	args := m.Called(ctx, number, text)
	r, _ := args.Get(0).(*domain.DeliveryReceipt)
	return r, args.Error(1)
}
func (m *mockMessagingSvc) SendNotification(ctx context.Context, phone, text string) (*domain.DeliveryReceipt, error) {
	args := m.Called(ctx, phone, text)
	r, _ := args.Get(0).(*domain.DeliveryReceipt)
	return r, args.Error(1)
}
func (m *mockMessagingSvc) CheckSubscription(ctx context.Context, phone string) (string, bool, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Bool(1), args.Error(2)
}

// --- helpers ---

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// --- tests ---

func TestSendMessage_OK(t *testing.T) {
	svc := &mockMessagingSvc{}
	svc.On("SendMessage", mock.Anything, "0912345678", "hello").
		Return(&domain.DeliveryReceipt{MessageID: "3EB0", To: "249912345678@s.whatsapp.net"}, nil)

	rec := post(NewMessageHandler(svc).SendMessage, `{"number":"0912345678","message":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "3EB0", env.Data.(map[string]interface{})["id"])
}

func TestSendMessage_MissingFields(t *testing.T) {
	svc := &mockMessagingSvc{}
	rec := post(NewMessageHandler(svc).SendMessage, `{"number":"0912345678"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessage_MalformedJSONHasHint(t *testing.T) {
	rec := post(NewMessageHandler(&mockMessagingSvc{}).SendMessage, `{number: 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Hint)
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrUnavailable, http.StatusServiceUnavailable},
		{domain.ErrNotOnNetwork, http.StatusNotFound},
		{domain.ErrBadRequest, http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &mockMessagingSvc{}
		svc.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)
		rec := post(NewMessageHandler(svc).SendMessage, `{"number":"912345678","message":"hi"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestSendNotification_AcceptsPhoneOrNumber(t *testing.T) {
	svc := &mockMessagingSvc{}
	svc.On("SendNotification", mock.Anything, "912345678", "shipped").Return(&domain.DeliveryReceipt{MessageID: "n"}, nil).Twice()
	h := NewMessageHandler(svc)

	assert.Equal(t, http.StatusOK, post(h.SendNotification, `{"phone":"912345678","message":"shipped"}`).Code)
	assert.Equal(t, http.StatusOK, post(h.SendNotification, `{"number":"912345678","message":"shipped"}`).Code)
	svc.AssertExpectations(t)
}

func TestSendNotification_Forbidden(t *testing.T) {
	svc := &mockMessagingSvc{}
	svc.On("SendNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrForbidden)

	rec := post(NewMessageHandler(svc).SendNotification, `{"phone":"912345678","message":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendNotification_MissingRecipient(t *testing.T) {
	rec := post(NewMessageHandler(&mockMessagingSvc{}).SendNotification, `{"message":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckSubscription(t *testing.T) {
	svc := &mockMessagingSvc{}
	svc.On("CheckSubscription", mock.Anything, "0912345678").Return("2490912345678", true, nil)

	r := chi.NewRouter()
	r.Get("/check-subscription/{phone}", NewMessageHandler(svc).CheckSubscription)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/check-subscription/0912345678", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["subscribed"])
	assert.Equal(t, "2490912345678", body["phone"])
}
