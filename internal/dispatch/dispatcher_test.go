package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbus/internal/domain/alert"
	"alertbus/internal/domain/delivery"
	"alertbus/internal/routing"
	"alertbus/internal/voice"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

type staticRouter struct {
	targets []alert.RouteTarget
}

func (r staticRouter) Route(t alert.EventType, _ alert.Attributes) routing.Result {
	return routing.Result{
		EventType:      t,
		MatchedRuleIDs: []string{"rule_1"},
		Targets:        r.targets,
		Routed:         len(r.targets) > 0,
	}
}

type sentMessage struct {
	target alert.RouteTarget
	text   string
	silent bool
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	fail  map[string]error
	block bool
}

func (s *fakeSender) Send(ctx context.Context, target alert.RouteTarget, text string, silent bool) error {
	if s.block {
		<-make(chan struct{})
	}
	if err := s.fail[target.ID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{target, text, silent})
	return nil
}

func (s *fakeSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type fakeVoice struct {
	mu       sync.Mutex
	eligible bool
	state    voice.State
	calls    int
}

func (v *fakeVoice) ShouldAlert(alert.EventType, alert.Attributes) bool {
	return v.eligible
}

func (v *fakeVoice) Send(_ context.Context, t alert.EventType, _ alert.Attributes) (voice.Alert, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return voice.Alert{ID: "VOICE-1", State: v.state, Success: v.state == voice.StatePlayed}, true
}

type memRecorder struct {
	mu      sync.Mutex
	metrics []delivery.Metric
}

func (r *memRecorder) Record(m delivery.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *memRecorder) byChannel() map[delivery.Channel]delivery.Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[delivery.Channel]delivery.Metric)
	for _, m := range r.metrics {
		out[m.Channel] = m
	}
	return out
}

type harness struct {
	d     *Dispatcher
	chat  *fakeSender
	sms   *fakeSender
	voice *fakeVoice
	rec   *memRecorder
}

func newHarness(t *testing.T, cfg Config, targets ...alert.RouteTarget) *harness {
	t.Helper()
	if len(targets) == 0 {
		targets = []alert.RouteTarget{alert.NewTarget(alert.TargetChat, "ops", 10)}
	}
	h := &harness{
		chat:  &fakeSender{},
		sms:   &fakeSender{},
		voice: &fakeVoice{eligible: true, state: voice.StatePlayed},
		rec:   &memRecorder{},
	}
	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	h.d = New(staticRouter{targets}, h.rec, cfg, logger.NewNop(),
		WithChat(h.chat),
		WithSMS(h.sms),
		WithVoice(h.voice),
		WithClock(func() time.Time { return clock }),
	)
	return h
}

func entryAttrs() map[string]any {
	return map[string]any{
		"symbol":      "EURUSD",
		"direction":   "BUY",
		"entry_price": 1.0852,
		"signal_type": "breakout",
		"user_id":     "trader-7",
	}
}

func TestChannelsFor(t *testing.T) {
	chat, voiceCh, sms := delivery.ChannelChat, delivery.ChannelVoice, delivery.ChannelSMS

	assert.Equal(t, []delivery.Channel{voiceCh, chat, sms}, ChannelsFor(alert.PriorityCritical))
	assert.Equal(t, []delivery.Channel{voiceCh, chat}, ChannelsFor(alert.PriorityHigh))
	assert.Equal(t, []delivery.Channel{voiceCh, chat}, ChannelsFor(alert.PriorityMedium))
	assert.Equal(t, []delivery.Channel{chat}, ChannelsFor(alert.PriorityLow))
	assert.Equal(t, []delivery.Channel{chat}, ChannelsFor(alert.PriorityInfo))
	assert.Empty(t, ChannelsFor(alert.PriorityUnknown))

	assert.True(t, Silent(alert.PriorityInfo))
	assert.False(t, Silent(alert.PriorityLow))
}

func TestNotify_CriticalUsesEveryChannel(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	ok := h.d.Notify(context.Background(), "emergency", "critical", map[string]any{"reason": "margin call"})
	require.True(t, ok)

	assert.Equal(t, 1, h.voice.calls)
	assert.Len(t, h.chat.messages(), 1)
	assert.Len(t, h.sms.messages(), 1)

	byCh := h.rec.byChannel()
	require.Len(t, byCh, 3)
	assert.True(t, byCh[delivery.ChannelVoice].VoiceSent)
	assert.False(t, byCh[delivery.ChannelChat].VoiceSent)
	assert.Equal(t, "critical", byCh[delivery.ChannelSMS].Priority)
}

func TestNotify_HighPriorityEntry(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	require.True(t, h.d.Notify(context.Background(), "entry", "high", entryAttrs()))

	assert.Equal(t, 1, h.voice.calls)
	msgs := h.chat.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "ENTRY")
	assert.Contains(t, msgs[0].text, "EURUSD")
	assert.False(t, msgs[0].silent)
	assert.Empty(t, h.sms.messages(), "sms is critical only")

	m := h.rec.byChannel()[delivery.ChannelChat]
	assert.Equal(t, "trader-7", m.UserID)
	assert.Equal(t, "entry", m.Type)
}

func TestNotify_InfoIsSilentChatOnly(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	require.True(t, h.d.Notify(context.Background(), "info", "info", map[string]any{"message": "heartbeat"}))

	assert.Zero(t, h.voice.calls)
	msgs := h.chat.messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].silent)
}

func TestNotify_EmptyPriorityUsesDefault(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	require.True(t, h.d.Notify(context.Background(), "daily_report", "", map[string]any{"total_trades": 3}))

	recs := h.d.RecentDispatches(1)
	require.Len(t, recs, 1)
	assert.Equal(t, "low", recs[0].Priority)
	assert.Zero(t, h.voice.calls)
}

func TestNotify_UnknownTypeRecordsFailure(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	assert.False(t, h.d.Notify(context.Background(), "lunar_eclipse", "high", nil))

	require.Len(t, h.rec.metrics, 1)
	m := h.rec.metrics[0]
	assert.Equal(t, delivery.ChannelNone, m.Channel)
	assert.False(t, m.Success)
	assert.Contains(t, m.Error, "unknown event type")
	assert.Empty(t, h.chat.messages())
}

func TestNotify_UnknownPriorityHasNoChannels(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	assert.False(t, h.d.Notify(context.Background(), "entry", "urgent", entryAttrs()))

	require.Len(t, h.rec.metrics, 1)
	assert.Equal(t, delivery.ChannelNone, h.rec.metrics[0].Channel)
	assert.Equal(t, errors.ErrChannelUnavailable.Error(), h.rec.metrics[0].Error)
	assert.Zero(t, h.voice.calls)
}

func TestDispatch_ChannelFailureIsIsolated(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.chat.fail = map[string]error{"ops": errors.New("telegram down")}

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventEmergency,
		Priority:   alert.PriorityCritical,
		Attributes: alert.AttributesFromMap(map[string]any{"reason": "drawdown"}),
	})

	assert.True(t, rec.Success)
	require.Len(t, rec.Channels, 3)
	byCh := h.rec.byChannel()
	assert.False(t, byCh[delivery.ChannelChat].Success)
	assert.Contains(t, byCh[delivery.ChannelChat].Error, "telegram down")
	assert.True(t, byCh[delivery.ChannelSMS].Success)
	assert.True(t, byCh[delivery.ChannelVoice].Success)
}

func TestDispatch_PartialTargetSuccess(t *testing.T) {
	h := newHarness(t, DefaultConfig(),
		alert.NewTarget(alert.TargetChat, "ops", 10),
		alert.NewTarget(alert.TargetUser, "alice", 5),
	)
	h.chat.fail = map[string]error{"alice": errors.New("blocked by user")}

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventWarning,
		Priority:   alert.PriorityLow,
		Attributes: alert.AttributesFromMap(map[string]any{"message": "spread widening"}),
	})

	require.Len(t, rec.Channels, 1)
	res := rec.Channels[0]
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Delivered)
	assert.Contains(t, res.Error, "user:alice")
}

func TestDispatch_NoTargetsFailsTextChannels(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.d.router = staticRouter{}

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventInfo,
		Priority:   alert.PriorityInfo,
		Attributes: alert.Attributes{},
	})

	assert.False(t, rec.Success)
	require.Len(t, rec.Channels, 1)
	assert.Equal(t, errors.ErrNoTargets.Error(), rec.Channels[0].Error)
}

func TestDispatch_ChannelTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChannelTimeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.sms.block = true

	done := make(chan Record, 1)
	go func() {
		done <- h.d.Dispatch(context.Background(), alert.Event{
			Type:       alert.EventCritical,
			Priority:   alert.PriorityCritical,
			Attributes: alert.AttributesFromMap(map[string]any{"message": "broker unreachable"}),
		})
	}()

	select {
	case rec := <-done:
		assert.True(t, rec.Success)
		sms := h.rec.byChannel()[delivery.ChannelSMS]
		assert.False(t, sms.Success)
		assert.Contains(t, sms.Error, "operation timeout")
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a stuck channel")
	}
}

func TestDispatch_VoiceQueuedCountsAsSuccess(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.voice.state = voice.StateQueued

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventTPHit,
		Priority:   alert.PriorityHigh,
		Attributes: alert.AttributesFromMap(map[string]any{"profit": 12}),
	})

	var voiceRes ChannelResult
	for _, res := range rec.Channels {
		if res.Channel == delivery.ChannelVoice {
			voiceRes = res
		}
	}
	assert.True(t, voiceRes.Success)
	assert.Equal(t, voice.StateQueued, voiceRes.VoiceState)

	m := h.rec.byChannel()[delivery.ChannelVoice]
	assert.True(t, m.Success)
	assert.False(t, m.VoiceSent, "queued alerts are not counted as spoken")
}

func TestDispatch_VoiceSkippedWhenIneligible(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.voice.eligible = false

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventPartialClose,
		Priority:   alert.PriorityMedium,
		Attributes: alert.Attributes{},
	})

	require.Len(t, rec.Channels, 1)
	assert.Equal(t, delivery.ChannelChat, rec.Channels[0].Channel)
	assert.Zero(t, h.voice.calls)
}

func TestDispatch_DisabledChannelsAreSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VoiceEnabled = false
	cfg.SMSEnabled = false
	h := newHarness(t, cfg)

	rec := h.d.Dispatch(context.Background(), alert.Event{
		Type:       alert.EventEmergency,
		Priority:   alert.PriorityCritical,
		Attributes: alert.Attributes{},
	})

	require.Len(t, rec.Channels, 1)
	assert.Equal(t, delivery.ChannelChat, rec.Channels[0].Channel)
	assert.Empty(t, h.sms.messages())
}

func TestFormatter_CustomAndFallback(t *testing.T) {
	f := NewFormatter(nil)
	e := alert.Event{
		Type:       alert.EventEntry,
		Priority:   alert.PriorityHigh,
		Attributes: alert.AttributesFromMap(map[string]any{"symbol": "XAUUSD"}),
	}

	// template requires direction and entry_price
	assert.Equal(t, "ENTRY: {symbol: XAUUSD}", f.Format(e))

	f.Register(alert.EventEntry, func(e alert.Event) (string, error) {
		return "custom " + e.Attributes["symbol"].String(), nil
	})
	assert.Equal(t, "custom XAUUSD", f.Format(e))

	f.Register(alert.EventEntry, func(alert.Event) (string, error) {
		return "", errors.New("boom")
	})
	assert.Equal(t, "ENTRY: {symbol: XAUUSD}", f.Format(e))

	f.Register(alert.EventEntry, nil)
	assert.Equal(t, "ENTRY: {symbol: XAUUSD}", f.Format(e))
}

func TestDispatch_RegisteredFormatterRendersChat(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.d.RegisterFormatter(alert.EventInfo, func(e alert.Event) (string, error) {
		return "custom " + e.Priority.String(), nil
	})

	require.True(t, h.d.Notify(context.Background(), "info", "info", map[string]any{"message": "hi"}))

	msgs := h.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "custom info", msgs[0].text)
}

func TestFormatter_TemplateFillsTimestamp(t *testing.T) {
	f := NewFormatter(nil)
	f.now = func() time.Time { return time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC) }

	text := f.Format(alert.Event{
		Type:       alert.EventEntry,
		Priority:   alert.PriorityHigh,
		Attributes: alert.AttributesFromMap(entryAttrs()),
	})
	assert.Contains(t, text, "Time: 2026-03-10 09:15:00")
	assert.Contains(t, text, "Entry: 1.0852")
}

func TestNotifyHelpers(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	rec := h.d.NotifyEntry(ctx, "breakout_v2", "EURUSD", "BUY", decimal.RequireFromString("1.0852"), "breakout", nil)
	assert.True(t, rec.Success)
	assert.Equal(t, alert.EventEntry, rec.Type)
	assert.Equal(t, "high", rec.Priority)

	rec = h.d.NotifyEmergency(ctx, "kill switch", map[string]any{"reason": "manual"})
	assert.Equal(t, "critical", rec.Priority)
	assert.Len(t, rec.Channels, 3)

	rec = h.d.NotifySystem(ctx, alert.EventInfo, "started", nil)
	assert.Equal(t, "info", rec.Priority)
	assert.True(t, h.chat.messages()[len(h.chat.messages())-1].silent)
}

func TestRecentDispatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogSize = 2
	h := newHarness(t, cfg)

	for _, msg := range []string{"a", "b", "c"} {
		h.d.NotifySystem(context.Background(), alert.EventInfo, msg, nil)
	}

	recs := h.d.RecentDispatches(10)
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
}
