package channel

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appErrors "github.com/unclebandit/leopard-outreach/internal/errors"
	"github.com/unclebandit/leopard-outreach/internal/model"
)

// SESClient is the part of *sesv2.Client the adapter uses.
type SESClient interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESAdapter sends email through Amazon SES v2. The sender identity comes
// from the tenant's provider config.
type SESAdapter struct {
	client SESClient
}

func NewSESAdapter(cfg aws.Config) *SESAdapter {
	return &SESAdapter{client: sesv2.NewFromConfig(cfg)}
}

func NewSESAdapterWithClient(client SESClient) *SESAdapter {
	return &SESAdapter{client: client}
}

func (a *SESAdapter) Send(ctx context.Context, cfg *model.ProviderConfig, msg Message) (*Result, error) {
	if cfg.FromAddress == "" {
		err := fmt.Errorf("ses provider %d has no from_address", cfg.ID)
		return &Result{ErrorMessage: err.Error()}, &appErrors.ProviderError{Provider: string(cfg.Kind), Err: err}
	}
	out, err := a.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(cfg.FromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(ToHTML(msg.Content))},
					Text: &types.Content{Data: aws.String(msg.Content)},
				},
			},
		},
	})
	if err != nil {
		return &Result{ErrorMessage: err.Error()}, &appErrors.ProviderError{Provider: string(cfg.Kind), Err: err}
	}
	return &Result{Success: true, StatusCode: 200, ResponseBody: aws.ToString(out.MessageId)}, nil
}
