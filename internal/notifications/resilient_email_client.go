package notifications

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/tsp-api/pkg/logger"
	"github.com/transitlab/tsp-api/pkg/resilience"
)

// EmailSender is the outbound email surface used by the notification service.
type EmailSender interface {
	SendVerificationEmail(to, link string) error
	SendWalletNotice(to, subject, message string) error
	SendRideReceiptEmail(to string, receiptDetails map[string]interface{}) error
}

// ResilientEmailClient wraps EmailClient with circuit breaker and retry logic
type ResilientEmailClient struct {
	client  EmailSender
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilientEmailClient creates a resilient wrapper around an email client.
// A nil breaker gets a default SMTP breaker.
func NewResilientEmailClient(client EmailSender, breaker *resilience.CircuitBreaker) *ResilientEmailClient {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "smtp-email",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}, resilience.NoopFallback)
	}

	// Email retries are less aggressive since delivery can be delayed anyway.
	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.MaxAttempts = 3
	retryConfig.InitialBackoff = 2 * time.Second
	retryConfig.MaxBackoff = 15 * time.Second
	retryConfig.RetryableChecker = isEmailRetryable

	return &ResilientEmailClient{
		client:  client,
		breaker: breaker,
		retry:   retryConfig,
	}
}

// SendVerificationEmail sends the verification link with retry and circuit breaker
func (r *ResilientEmailClient) SendVerificationEmail(to, link string) error {
	return r.send("verification", to, func() error {
		return r.client.SendVerificationEmail(to, link)
	})
}

// SendWalletNotice sends a wallet notice with retry and circuit breaker
func (r *ResilientEmailClient) SendWalletNotice(to, subject, message string) error {
	return r.send(subject, to, func() error {
		return r.client.SendWalletNotice(to, subject, message)
	})
}

// SendRideReceiptEmail sends a ride receipt with retry and circuit breaker
func (r *ResilientEmailClient) SendRideReceiptEmail(to string, receiptDetails map[string]interface{}) error {
	return r.send("ride receipt", to, func() error {
		return r.client.SendRideReceiptEmail(to, receiptDetails)
	})
}

func (r *ResilientEmailClient) send(kind, to string, op func() error) error {
	ctx := context.Background()

	_, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return nil, op()
	})
	if err != nil {
		logger.Get().Error("failed to send email after retries",
			zap.String("kind", kind),
			zap.String("to", maskEmail(to)),
			zap.Error(err),
		)
		return err
	}

	logger.Get().Debug("email sent",
		zap.String("kind", kind),
		zap.String("to", maskEmail(to)),
	)
	return nil
}

// isEmailRetryable determines if an email error should be retried
func isEmailRetryable(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	// Transient SMTP errors
	retryableMessages := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"421", // Service not available
		"450", // Mailbox unavailable (temporary)
		"451", // Local error in processing
		"452", // Insufficient system storage
		"network is unreachable",
		"i/o timeout",
		"eof",
		"too many connections",
		"server closed",
	}
	for _, msg := range retryableMessages {
		if strings.Contains(errMsg, msg) {
			return true
		}
	}

	// Permanent SMTP errors
	nonRetryableMessages := []string{
		"550", // Mailbox unavailable (permanent)
		"551", // User not local
		"552", // Exceeded storage allocation
		"553", // Mailbox name not allowed
		"554", // Transaction failed
		"invalid address",
		"invalid email",
		"mailbox not found",
		"user unknown",
		"domain not found",
		"authentication failed",
		"auth failed",
		"bad username",
		"bad password",
		"access denied",
	}
	for _, msg := range nonRetryableMessages {
		if strings.Contains(errMsg, msg) {
			return false
		}
	}

	return true
}

// maskEmail masks email address for logging (show only first char and domain)
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	if len(parts[0]) == 0 {
		return "***@" + parts[1]
	}
	return string(parts[0][0]) + "***@" + parts[1]
}
