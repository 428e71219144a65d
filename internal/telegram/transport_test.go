package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	ids     []int
	panicOn int
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u tgbotapi.Update) {
	if u.UpdateID == h.panicOn {
		panic("boom")
	}
	h.mu.Lock()
	h.ids = append(h.ids, u.UpdateID)
	h.mu.Unlock()
}

func (h *recordingHandler) seen() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.ids...)
}

func TestDispatcher_HandlesEveryUpdate(t *testing.T) {
	h := &recordingHandler{panicOn: -1}
	d := NewDispatcher(context.Background(), h, 4)

	for i := 1; i <= 20; i++ {
		d.Dispatch(tgbotapi.Update{UpdateID: i})
	}
	d.Wait()

	assert.Len(t, h.seen(), 20)
}

func TestDispatcher_RecoversFromPanics(t *testing.T) {
	h := &recordingHandler{panicOn: 2}
	d := NewDispatcher(context.Background(), h, 1)

	d.Dispatch(tgbotapi.Update{UpdateID: 1})
	d.Dispatch(tgbotapi.Update{UpdateID: 2})
	d.Dispatch(tgbotapi.Update{UpdateID: 3})
	d.Wait()

	assert.ElementsMatch(t, []int{1, 3}, h.seen())
}

func webhookServer(token string, d *Dispatcher) *chi.Mux {
	r := chi.NewRouter()
	r.Post(WebhookPath, WebhookHandler(token, d))
	return r
}

func TestWebhookHandler(t *testing.T) {
	h := &recordingHandler{panicOn: -1}
	d := NewDispatcher(context.Background(), h, 2)
	r := webhookServer("secret", d)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"wrong token", "/telegram/guess", `{"update_id":1}`, http.StatusNotFound},
		{"bad payload", "/telegram/secret", `{`, http.StatusBadRequest},
		{"accepted", "/telegram/secret", `{"update_id":7}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	d.Wait()
	assert.Equal(t, []int{7}, h.seen())
}

func TestWebhookHandler_RejectsOversizedBody(t *testing.T) {
	h := &recordingHandler{panicOn: -1}
	d := NewDispatcher(context.Background(), h, 1)
	r := webhookServer("secret", d)

	body := `{"update_id":9,"message":{"text":"` + strings.Repeat("a", maxUpdateBytes) + `"}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/secret", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	d.Wait()
	assert.Empty(t, h.seen())
}

type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped atomic.Bool
}

func (s *fakeSource) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.ch
}

func (s *fakeSource) StopReceivingUpdates() {
	s.stopped.Store(true)
}

func TestPoll_DispatchesUntilCancelled(t *testing.T) {
	h := &recordingHandler{panicOn: -1}
	d := NewDispatcher(context.Background(), h, 2)
	src := &fakeSource{ch: make(chan tgbotapi.Update)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Poll(ctx, src, d)
		close(done)
	}()

	src.ch <- tgbotapi.Update{UpdateID: 1}
	src.ch <- tgbotapi.Update{UpdateID: 2}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
	d.Wait()
	assert.True(t, src.stopped.Load())
	assert.ElementsMatch(t, []int{1, 2}, h.seen())
}

type fakeAPI struct {
	sends atomic.Int32
}

func (a *fakeAPI) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.sends.Add(1)
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (a *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if cfg.SuperGroupUsername != "@"+testChannel {
		return tgbotapi.ChatMember{}, assert.AnError
	}
	return tgbotapi.ChatMember{Status: "administrator"}, nil
}

func TestClient_PacesSends(t *testing.T) {
	api := &fakeAPI{}
	c := NewClient(api, 1)
	msg := tgbotapi.NewMessage(1, "hi")

	require.NoError(t, c.Send(context.Background(), msg))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, msg)

	require.Error(t, err)
	assert.EqualValues(t, 1, api.sends.Load())
}

func TestClient_MemberStatus(t *testing.T) {
	c := NewClient(&fakeAPI{}, 100)

	status, err := c.MemberStatus(context.Background(), testChannel, userID)

	require.NoError(t, err)
	assert.Equal(t, "administrator", status)
}
