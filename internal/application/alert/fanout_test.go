package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
)

type mockSink struct{ mock.Mock }

func (m *mockSink) Alert(ctx context.Context, subject, body string) error {
	return m.Called(ctx, subject, body).Error(0)
}

func TestFanout_ContinuesPastFailingSink(t *testing.T) {
	failing := &mockSink{}
	failing.On("Alert", mock.Anything, "pairing required", "scan the otp QR").Return(errors.New("smtp down"))
	ok := &mockSink{}
	ok.On("Alert", mock.Anything, "pairing required", "scan the otp QR").Return(nil)

	NewFanout(nil, failing, ok).Notify(context.Background(), "pairing required", "scan the otp QR")

	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestFanout_NilIsNoop(t *testing.T) {
	var f *Fanout
	f.Notify(context.Background(), "s", "b")
}
