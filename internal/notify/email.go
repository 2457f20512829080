package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Notifier sends customer-facing notifications. Sending is best-effort
// and must never block or fail a booking.
type Notifier interface {
	SendTrackingEmail(ctx context.Context, to, customerName, trackingNumber string) error
}

type sesNotifier struct {
	client      *sesv2.Client
	from        string
	trackingURL string
}

// NewSESNotifier builds a notifier backed by Amazon SES v2 using the
// default AWS credential chain.
func NewSESNotifier(ctx context.Context, region, from, trackingURL string) (Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &sesNotifier{
		client:      sesv2.NewFromConfig(cfg),
		from:        from,
		trackingURL: trackingURL,
	}, nil
}

func (n *sesNotifier) SendTrackingEmail(ctx context.Context, to, customerName, trackingNumber string) error {
	subject := fmt.Sprintf("Your QuickHop Order %s", trackingNumber)
	html := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h1 style="color: #3b82f6;">QuickHop Delivery Update</h1>
			<p>Hello %s,</p>
			<p>Your order is on the way! Track your delivery with the number below:</p>
			<div style="background-color: #f3f4f6; padding: 15px; border-radius: 8px; text-align: center; margin: 20px 0;">
				<span style="font-size: 24px; font-weight: bold; letter-spacing: 2px;">%s</span>
			</div>
			<p>Visit <a href="%s/%s">%s/%s</a> for real-time updates.</p>
			<p>Thank you for choosing QuickHop!</p>
		</div>`,
		customerName, trackingNumber, n.trackingURL, trackingNumber, n.trackingURL, trackingNumber)

	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html)},
				},
			},
		},
	})
	return err
}

// NopNotifier is used when email is not configured; it logs and drops.
type NopNotifier struct{}

func (NopNotifier) SendTrackingEmail(ctx context.Context, to, customerName, trackingNumber string) error {
	log.Printf("email disabled, skipping tracking email to %s (%s)", to, trackingNumber)
	return nil
}
