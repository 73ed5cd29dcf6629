package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSESAPI struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSESAPI) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESClient_Send(t *testing.T) {
	api := &fakeSESAPI{}
	client := &SESClient{api: api, cfg: SESConfig{
		From:             "noreply@bumdes.example",
		ReplyTo:          "sekretariat@bumdes.example",
		ConfigurationSet: "bumdes-digest",
	}}

	if err := client.Send(context.Background(), " pengelola@bumdes.example ", Message{Subject: "Rekap", Body: "Isi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	in := api.input
	if got := aws.ToString(in.FromEmailAddress); got != "noreply@bumdes.example" {
		t.Fatalf("from = %q", got)
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "pengelola@bumdes.example" {
		t.Fatalf("to = %v", in.Destination.ToAddresses)
	}
	if len(in.ReplyToAddresses) != 1 || aws.ToString(in.ConfigurationSetName) != "bumdes-digest" {
		t.Fatalf("reply-to = %v, configuration set = %q", in.ReplyToAddresses, aws.ToString(in.ConfigurationSetName))
	}
	simple := in.Content.Simple
	if aws.ToString(simple.Subject.Data) != "Rekap" || aws.ToString(simple.Body.Text.Data) != "Isi" || aws.ToString(simple.Body.Text.Charset) != "UTF-8" {
		t.Fatalf("content = %+v", simple)
	}
}

func TestSESClient_SendOptionalFieldsOmitted(t *testing.T) {
	api := &fakeSESAPI{}
	client := &SESClient{api: api, cfg: SESConfig{From: "noreply@bumdes.example"}}

	if err := client.Send(context.Background(), "pengelola@bumdes.example", Message{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.input.ReplyToAddresses != nil || api.input.ConfigurationSetName != nil {
		t.Fatalf("unexpected optional fields: %+v", api.input)
	}
}

func TestSESClient_SendErrors(t *testing.T) {
	api := &fakeSESAPI{err: errors.New("throttled")}
	client := &SESClient{api: api, cfg: SESConfig{From: "noreply@bumdes.example"}}

	if err := client.Send(context.Background(), "", Message{}); err == nil {
		t.Fatal("expected error for blank recipient")
	}
	if api.input != nil {
		t.Fatal("blank recipient should not reach SES")
	}
	if err := client.Send(context.Background(), "pengelola@bumdes.example", Message{}); !errors.Is(err, api.err) {
		t.Fatalf("send err = %v", err)
	}

	var nilClient *SESClient
	if err := nilClient.Send(context.Background(), "pengelola@bumdes.example", Message{}); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestNewSESClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SESConfig
	}{
		{"missing credentials", SESConfig{Region: "ap-southeast-1", From: "noreply@bumdes.example"}},
		{"missing region", SESConfig{AccessKeyID: "id", SecretAccessKey: "secret", From: "noreply@bumdes.example"}},
		{"missing sender", SESConfig{AccessKeyID: "id", SecretAccessKey: "secret", Region: "ap-southeast-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSESClient(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
