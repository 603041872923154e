package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-wabridge/webhooks"
)

type webhookView struct {
	URL        string    `json:"url"`
	Events     []string  `json:"events"`
	HasSecret  bool      `json:"hasSecret"`
	MaxRetries int       `json:"maxRetries"`
	TimeoutMS  int64     `json:"timeoutMs"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newWebhookView(sub webhooks.Subscription) webhookView {
	return webhookView{
		URL:        sub.URL,
		Events:     append([]string{}, sub.Events...),
		HasSecret:  sub.Secret != "",
		MaxRetries: sub.MaxRetries,
		TimeoutMS:  sub.Timeout.Milliseconds(),
		CreatedAt:  sub.CreatedAt,
		UpdatedAt:  sub.UpdatedAt,
	}
}

type testDeliveryView struct {
	DeliveryID string `json:"deliveryId"`
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"statusCode,omitempty"`
	Queued     bool   `json:"queued"`
	Error      string `json:"error,omitempty"`
}

type setWebhookResponse struct {
	Webhook      webhookView      `json:"webhook"`
	TestDelivery testDeliveryView `json:"testDelivery"`
	Message      string           `json:"message"`
}

func newSetWebhookResponse(result webhooks.SetWebhookResult) setWebhookResponse {
	test := result.TestDelivery
	view := testDeliveryView{
		DeliveryID: test.DeliveryID,
		Delivered:  test.Delivered,
		StatusCode: test.StatusCode,
		Queued:     test.Queued,
	}
	if test.Err != nil {
		view.Error = test.Err.Error()
	}
	return setWebhookResponse{
		Webhook:      newWebhookView(result.Subscription),
		TestDelivery: view,
		Message: fmt.Sprintf(
			"Webhook configured successfully for URL: %s\nEvents: %s",
			result.Subscription.URL,
			strings.Join(result.Subscription.Events, ", "),
		),
	}
}

type removeWebhookResponse struct {
	URL     string `json:"url"`
	Removed bool   `json:"removed"`
	Message string `json:"message"`
}

func newRemoveWebhookResponse(result webhooks.RemoveWebhookResult) removeWebhookResponse {
	message := "Webhook removed successfully for URL: " + result.URL
	if !result.Removed {
		message = "Webhook not found for URL: " + result.URL
	}
	return removeWebhookResponse{URL: result.URL, Removed: result.Removed, Message: message}
}

type sweepView struct {
	Attempted     int `json:"attempted"`
	Delivered     int `json:"delivered"`
	Failed        int `json:"failed"`
	Evicted       int `json:"evicted"`
	DroppedQueues int `json:"droppedQueues"`
	Deferred      int `json:"deferred"`
}

func newSweepView(report webhooks.SweepReport) sweepView {
	return sweepView{
		Attempted:     report.Attempted,
		Delivered:     report.Delivered,
		Failed:        report.Failed,
		Evicted:       report.Evicted,
		DroppedQueues: report.DroppedQueues,
		Deferred:      report.Deferred,
	}
}
