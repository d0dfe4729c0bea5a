package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(WithAccountSID("AC1")); err == nil {
		t.Error("expected error without auth token")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("fromWhats = %q", c.fromWhats)
	}
}

func TestSendMessage(t *testing.T) {
	api := &fakeAPI{}
	c := &Client{api: api, fromWhats: "whatsapp:+14155238886"}

	if err := c.SendMessage(context.Background(), "+15551234567", "Reminder: stretch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.params))
	}
	p := api.params[0]
	if *p.To != "whatsapp:+15551234567" || *p.From != "whatsapp:+14155238886" || *p.Body != "Reminder: stretch" {
		t.Errorf("unexpected params: to=%s from=%s body=%s", *p.To, *p.From, *p.Body)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	c := &Client{api: &fakeAPI{err: errors.New("rate limited")}, fromWhats: "whatsapp:+1"}
	if err := c.SendMessage(context.Background(), "+2", "x"); err == nil {
		t.Error("expected API error to surface")
	}
	if err := c.SendMessage(context.Background(), "", "x"); err == nil {
		t.Error("expected error for empty recipient")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.SendMessage(ctx, "+2", "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMockClient_SendMessage(t *testing.T) {
	mock := NewMockClient()
	if err := mock.SendMessage(context.Background(), "12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "Hello Test" {
		t.Errorf("unexpected messages: %+v", mock.SentMessages)
	}
}
