package logic

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/callscreen/internal/model"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Webhook{}))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type capture struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
}

func (c *capture) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	c.mu.Lock()
	c.bodies = append(c.bodies, body)
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestWebhookService_Dispatch(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer srv.Close()

	repo := repository.NewWebhookRepository(openTestDB(t))
	require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL, Platform: "generic", Enabled: true, OnlyBlocked: true}))
	require.NoError(t, repo.Create(&model.Webhook{URL: srv.URL, Platform: "telegram", ChannelID: "42", Template: "{{.Number}}/{{.Reason}}", Enabled: true}))

	svc := NewWebhookService(repo)

	svc.Dispatch(&model.Call{Number: "8005551234", Blocked: true, Reason: "NumberAreaCodeMatched"})
	svc.Wait()
	require.Len(t, rec.bodies, 2)

	texts := map[string]bool{}
	for _, b := range rec.bodies {
		texts[b["text"].(string)] = true
		if _, ok := b["chat_id"]; ok {
			assert.Equal(t, "42", b["chat_id"])
		}
	}
	assert.True(t, texts["Blocked call from 8005551234: NumberAreaCodeMatched"])
	assert.True(t, texts["8005551234/NumberAreaCodeMatched"])

	rec.bodies = nil
	svc.Dispatch(&model.Call{Number: "5551234"})
	svc.Wait()
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "5551234/", rec.bodies[0]["text"])
}

func TestBuildPayload(t *testing.T) {
	call := &model.Call{Number: "5551234", Name: "JOHN DOE", Blocked: true, Reason: "NameMatched"}

	raw, err := buildPayload(model.Webhook{URL: "https://hooks.slack.com/x"}, call)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"Blocked call from 5551234 (JOHN DOE): NameMatched"}`, string(raw))

	raw, err = buildPayload(model.Webhook{Template: "{{.Bogus"}, call)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Blocked call from 5551234 (JOHN DOE): NameMatched", body["text"])
	assert.Contains(t, body, "call")
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	assert.Equal(t, 2, bus.Subscribers())

	bus.Publish(Event{Type: EventInterception})
	assert.Equal(t, EventInterception, (<-a).Type)
	ev := <-b
	assert.Equal(t, EventInterception, ev.Type)
	assert.False(t, ev.Time.IsZero())

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, bus.Subscribers())

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(Event{Type: EventCallerID})
	}
	assert.Len(t, b, subscriberBuffer)

	bus.Close()
	cancelB()
	late, _ := bus.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
