package logic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/pccr10001/callscreen/internal/model"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/pccr10001/callscreen/pkg/logger"
)

type WebhookService struct {
	repo   *repository.WebhookRepository
	client *http.Client
	wg     sync.WaitGroup
}

func NewWebhookService(repo *repository.WebhookRepository) *WebhookService {
	return &WebhookService{
		repo:   repo,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch sends the call to every interested hook in the background.
func (s *WebhookService) Dispatch(call *model.Call) {
	webhooks, err := s.repo.FindForCall(call.Blocked)
	if err != nil {
		logger.Log.Errorf("Failed to fetch webhooks: %v", err)
		return
	}

	snapshot := *call
	for _, wh := range webhooks {
		s.wg.Add(1)
		go func(wh model.Webhook) {
			defer s.wg.Done()
			s.sendWebhook(wh, &snapshot)
		}(wh)
	}
}

// Wait blocks until in-flight deliveries finish.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

func defaultText(call *model.Call) string {
	caller := call.Number
	if call.Name != "" {
		caller = fmt.Sprintf("%s (%s)", call.Number, call.Name)
	}
	if call.Blocked {
		return fmt.Sprintf("Blocked call from %s: %s", caller, call.Reason)
	}
	return fmt.Sprintf("Incoming call from %s", caller)
}

func renderText(wh model.Webhook, call *model.Call) string {
	if wh.Template == "" {
		return defaultText(call)
	}
	tmpl, err := template.New("msg").Parse(wh.Template)
	if err != nil {
		logger.Log.Warnf("Webhook %d template invalid: %v", wh.ID, err)
		return defaultText(call)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, call); err != nil {
		logger.Log.Warnf("Webhook %d template failed: %v", wh.ID, err)
		return defaultText(call)
	}
	return buf.String()
}

func buildPayload(wh model.Webhook, call *model.Call) ([]byte, error) {
	content := renderText(wh, call)

	switch {
	case wh.Platform == "slack" || strings.Contains(wh.URL, "slack.com"):
		return json.Marshal(map[string]interface{}{"text": content})
	case wh.Platform == "telegram":
		body := map[string]interface{}{
			"text":       content,
			"parse_mode": "Markdown",
		}
		if wh.ChannelID != "" {
			body["chat_id"] = wh.ChannelID
		}
		return json.Marshal(body)
	default:
		return json.Marshal(map[string]interface{}{
			"text": content,
			"call": call,
		})
	}
}

func (s *WebhookService) sendWebhook(wh model.Webhook, call *model.Call) {
	payload, err := buildPayload(wh, call)
	if err != nil {
		logger.Log.Errorf("Failed to marshal webhook payload: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		logger.Log.Errorf("Failed to create request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Log.Errorf("Failed to send webhook to %s: %v", wh.URL, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Log.Errorf("Webhook %s returned status: %d", wh.URL, resp.StatusCode)
	} else {
		logger.Log.Infof("Webhook sent to %s", wh.URL)
	}
}
