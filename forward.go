package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	redlock "github.com/JerrettDavis/QuickApiMapper-sub001/internal/lock"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/notification"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/request"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// deliveryRejectedError marks a destination response that retrying cannot fix,
// such as a validation failure on the mapped payload.
type deliveryRejectedError struct {
	StatusCode int
	Body       string
}

func (e *deliveryRejectedError) Error() string {
	return fmt.Sprintf("destination rejected delivery with status %d: %s", e.StatusCode, e.Body)
}

// ProcessDelivery handles a delivery task from the queue. It pushes the mapped
// payload to its destination URL and decides, from the response, whether the
// task should be retried by the queue or dead-lettered for good.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - task *asynq.Task: The task containing the serialized delivery.
//
// Returns:
// - error: An error if the delivery failed and should be retried.
func (m *Mapper) ProcessDelivery(ctx context.Context, task *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "Processing delivery from queue")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	var delivery model.Delivery
	if err := json.Unmarshal(task.Payload(), &delivery); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}

	locker := redlock.NewLocker(m.redis, delivery.DeliveryID, model.GenerateUUIDWithSuffix("loc"))
	if err := locker.Lock(ctx, time.Minute*5); err != nil {
		return err
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		err := locker.Unlock(ctx)
		if err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	if err := m.refreshDeliveryAuth(ctx, &delivery); err != nil {
		return err
	}

	retried, _ := asynq.GetRetryCount(ctx)
	delivery.Attempts = retried + 1

	err = m.deliver(ctx, conf, &delivery)
	if err == nil {
		delivery.Status = model.StatusDelivered
		log.Printf(" [*] Successfully delivered: %+v", delivery.DeliveryID)
		go func() {
			if err := notification.SendWebhook("delivery.completed", delivery); err != nil {
				notification.NotifyError(err)
			}
		}()
		return nil
	}

	span.RecordError(err)
	delivery.Status = model.StatusFailed
	delivery.LastError = err.Error()

	var rejected *deliveryRejectedError
	if errors.As(err, &rejected) {
		m.deadLetterDelivery(ctx, &delivery)
		return fmt.Errorf("delivery %s rejected by destination: %w", delivery.DeliveryID, asynq.SkipRetry)
	}

	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		m.deadLetterDelivery(ctx, &delivery)
	}
	return err
}

// deliver pushes one delivery to its destination. Short transient faults are
// retried in process with exponential backoff; anything that survives those
// attempts goes back to the queue for the long-horizon retry schedule.
func (m *Mapper) deliver(ctx context.Context, conf *config.Configuration, delivery *model.Delivery) error {
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(conf.Forward.TimeoutSec)*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", delivery.ContentType)
		for key, value := range delivery.Headers {
			req.Header.Set(key, value)
		}

		resp, body, err := request.CallRaw(req)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			// A stale token cannot recover inside this attempt. Invalidate so
			// the next queue attempt fetches a fresh one.
			if auth := m.deliveryAuth(ctx, delivery); auth != nil {
				m.tokens.Invalidate(auth)
			}
			return backoff.Permanent(fmt.Errorf("destination %s rejected credentials with status %d", delivery.URL, resp.StatusCode))
		case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return fmt.Errorf("destination %s answered %d: %s", delivery.URL, resp.StatusCode, truncateBody(body))
		default:
			return backoff.Permanent(&deliveryRejectedError{StatusCode: resp.StatusCode, Body: truncateBody(body)})
		}
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx))
}

// refreshDeliveryAuth swaps in a current bearer token right before the push.
// Tokens captured at mapping time can expire while a delivery waits out its
// retry schedule.
func (m *Mapper) refreshDeliveryAuth(ctx context.Context, delivery *model.Delivery) error {
	auth := m.deliveryAuth(ctx, delivery)
	if auth == nil {
		return nil
	}
	token, err := m.tokens.Token(ctx, auth)
	if err != nil {
		return err
	}

	header := auth.HeaderName
	if header == "" {
		header = "Authorization"
	}
	if delivery.Headers == nil {
		delivery.Headers = map[string]string{}
	}
	delivery.Headers[header] = "Bearer " + token
	return nil
}

// deliveryAuth looks up the auth config of the integration a delivery belongs
// to. Returns nil when the integration has none or cannot be loaded.
func (m *Mapper) deliveryAuth(ctx context.Context, delivery *model.Delivery) *model.AuthConfig {
	mapping, err := m.store.GetMappingByEndpoint(ctx, delivery.Endpoint)
	if err != nil || mapping == nil {
		return nil
	}
	return mapping.Auth
}

// deadLetterDelivery archives a delivery that will never be retried again and
// raises an operator notification.
func (m *Mapper) deadLetterDelivery(ctx context.Context, delivery *model.Delivery) {
	delivery.Status = model.StatusDeadLetter
	if err := m.archive.ArchiveDeadLetter(ctx, delivery); err != nil {
		logrus.Errorf("ERROR archiving dead letter %s. %s", delivery.DeliveryID, err)
	}
	notification.NotifyError(fmt.Errorf("delivery %s to %s dead-lettered after %d attempts: %s", delivery.DeliveryID, delivery.URL, delivery.Attempts, delivery.LastError))
	go func() {
		if err := notification.SendWebhook("delivery.dead_letter", delivery); err != nil {
			notification.NotifyError(err)
		}
	}()
}

// truncateBody keeps error messages and dead-letter records readable when a
// destination answers with a large error page.
func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
