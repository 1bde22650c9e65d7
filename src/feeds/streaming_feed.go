package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stratbot/src/datamodels"
	"stratbot/src/ingest"
	"stratbot/src/utils/errors"
	"stratbot/src/utils/general"
)

const (
	defaultPushURL      = "wss://stream.binance.com:9443/stream"
	defaultPollInterval = 30 * time.Second
	reconnectDelay      = time.Second
	broadcastTimeout    = time.Second
)

var binanceStreamIntervals = map[datamodels.Timeframe]string{
	datamodels.Timeframe1m:  "1m",
	datamodels.Timeframe3m:  "3m",
	datamodels.Timeframe5m:  "5m",
	datamodels.Timeframe15m: "15m",
	datamodels.Timeframe30m: "30m",
	datamodels.Timeframe1h:  "1h",
	datamodels.Timeframe2h:  "2h",
	datamodels.Timeframe4h:  "4h",
	datamodels.Timeframe6h:  "6h",
	datamodels.Timeframe12h: "12h",
	datamodels.Timeframe1d:  "1d",
}

// StreamingFeed delivers closed bars for watched streams. Binance streams
// arrive over a combined websocket; other venues are polled through their
// latest-bar fetchers. The websocket reconnects after a fixed delay for as
// long as the feed is started.
type StreamingFeed struct {
	pushURL      string
	pollInterval time.Duration
	dialer       *websocket.Dialer

	mutex        sync.Mutex
	conn         *websocket.Conn
	started      bool
	streams      map[string]datamodels.StreamSubscription
	pendingSubs  []string
	subscribers  map[string]*datamodels.BarSubscription
	pollFetchers map[datamodels.Venue]ingest.LatestBarFetcher
	pollers      map[string]struct{}
	runCtx       context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewStreamingFeed(cfg datamodels.FeedConfig) *StreamingFeed {
	pushURL := cfg.PushURL
	if pushURL == "" {
		pushURL = defaultPushURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &StreamingFeed{
		pushURL:      pushURL,
		pollInterval: pollInterval,
		dialer:       websocket.DefaultDialer,
		streams:      make(map[string]datamodels.StreamSubscription),
		subscribers:  make(map[string]*datamodels.BarSubscription),
		pollFetchers: make(map[datamodels.Venue]ingest.LatestBarFetcher),
		pollers:      make(map[string]struct{}),
	}
}

// WithPollFetcher wires the latest-bar source for a polled venue.
func (s *StreamingFeed) WithPollFetcher(venue datamodels.Venue, fetcher ingest.LatestBarFetcher) *StreamingFeed {
	s.pollFetchers[venue] = fetcher
	return s
}

func (s *StreamingFeed) GetName() string {
	return "streaming_feed"
}

// Watch registers a stream. Binance streams subscribe over the websocket
// immediately when connected, or as soon as the next connection opens.
// Polled venues get their poller on the spot when the feed is already
// running.
func (s *StreamingFeed) Watch(sub datamodels.StreamSubscription) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.streams[sub.Key()] = sub
	if sub.Venue != datamodels.VenueBinance {
		if s.started {
			s.startPollerLocked(sub)
		}
		return
	}
	stream := binanceStreamName(sub)
	if s.conn != nil {
		if err := s.sendSubscribeLocked("SUBSCRIBE", []string{stream}); err != nil {
			slog.Warn("Failed to send subscribe, queueing", "stream", stream, "error", err)
			s.pendingSubs = append(s.pendingSubs, stream)
		}
		return
	}
	s.pendingSubs = append(s.pendingSubs, stream)
}

func (s *StreamingFeed) Unwatch(sub datamodels.StreamSubscription) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.streams, sub.Key())
	if sub.Venue != datamodels.VenueBinance || s.conn == nil {
		return
	}
	if err := s.sendSubscribeLocked("UNSUBSCRIBE", []string{binanceStreamName(sub)}); err != nil {
		slog.Warn("Failed to send unsubscribe", "stream", binanceStreamName(sub), "error", err)
	}
}

func (s *StreamingFeed) Subscribe(ctx context.Context, subscriberName string) (*datamodels.BarSubscription, error) {
	subscription := &datamodels.BarSubscription{
		SubscriptionName: fmt.Sprintf("%s_%s", subscriberName, s.GetName()),
		SubscriptionId:   uuid.New().String(),
		BarChan:          make(chan datamodels.BarEvent, 100),
		DoneChan:         make(chan struct{}),
		ErrorChan:        make(chan error),
	}
	s.mutex.Lock()
	s.subscribers[subscription.SubscriptionId] = subscription
	s.mutex.Unlock()
	return subscription, nil
}

func (s *StreamingFeed) Unsubscribe(ctx context.Context, subscriptionId string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if sub, exists := s.subscribers[subscriptionId]; exists {
		close(sub.DoneChan)
		delete(s.subscribers, subscriptionId)
	}
	return nil
}

func (s *StreamingFeed) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.started {
		s.mutex.Unlock()
		return errors.New("feed already started")
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runCtx = runCtx

	for _, sub := range s.streams {
		if sub.Venue != datamodels.VenueBinance {
			s.startPollerLocked(sub)
		}
	}
	streamCount := len(s.streams)
	s.mutex.Unlock()

	// The socket dials even when nothing is watched yet, so streams watched
	// after start subscribe on the open connection instead of stranding in
	// the pending queue.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connectLoop(runCtx)
	}()
	slog.Info("Feed started", "feedName", s.GetName(), "streams", streamCount)
	return nil
}

// startPollerLocked spawns the poll goroutine for a non-push stream. Caller
// holds the mutex; watching the same key again is a no-op.
func (s *StreamingFeed) startPollerLocked(sub datamodels.StreamSubscription) {
	if _, running := s.pollers[sub.Key()]; running {
		return
	}
	fetcher, ok := s.pollFetchers[sub.Venue]
	if !ok {
		slog.Warn("No poll fetcher for venue, stream will not deliver", "venue", sub.Venue, "key", sub.Key())
		return
	}
	s.pollers[sub.Key()] = struct{}{}
	runCtx := s.runCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(runCtx, sub, fetcher)
	}()
}

func (s *StreamingFeed) IsStarted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

// Stop cancels the socket and poller goroutines and waits for them to exit,
// then closes every subscriber's done channel.
func (s *StreamingFeed) Stop() error {
	s.mutex.Lock()
	if !s.started {
		s.mutex.Unlock()
		slog.Warn("Feed is not started, cannot stop")
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.cancel = nil
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mutex.Lock()
	for _, sub := range s.subscribers {
		close(sub.DoneChan)
	}
	s.subscribers = make(map[string]*datamodels.BarSubscription)
	s.pollers = make(map[string]struct{})
	s.runCtx = nil
	s.mutex.Unlock()
	return nil
}

func (s *StreamingFeed) connectLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil || !s.IsStarted() {
			return
		}
		if err := s.runConnection(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Feed connection lost, reconnecting", "feedName", s.GetName(), "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *StreamingFeed) runConnection(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.pushURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial feed socket")
	}

	s.mutex.Lock()
	s.conn = conn
	params := []string{}
	for _, sub := range s.streams {
		if sub.Venue == datamodels.VenueBinance {
			params = append(params, binanceStreamName(sub))
		}
	}
	params = append(params, s.pendingSubs...)
	s.pendingSubs = nil
	var subscribeErr error
	if len(params) > 0 {
		subscribeErr = s.sendSubscribeLocked("SUBSCRIBE", params)
	}
	s.mutex.Unlock()
	if subscribeErr != nil {
		conn.Close()
		return errors.Wrap(subscribeErr, "failed to subscribe on open")
	}

	defer func() {
		s.mutex.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mutex.Unlock()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if event, ok := s.parseBarMessage(message); ok {
			s.broadcast(ctx, event)
		}
	}
}

// sendSubscribeLocked writes a stream management frame. Caller holds the
// mutex, which also serializes websocket writes.
func (s *StreamingFeed) sendSubscribeLocked(method string, params []string) error {
	if s.conn == nil {
		return errors.New("feed socket not connected")
	}
	return s.conn.WriteJSON(map[string]any{
		"method": method,
		"params": params,
		"id":     time.Now().UnixMilli(),
	})
}

type wsKline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

type wsCombinedMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Kline *wsKline `json:"k"`
	} `json:"data"`
}

// parseBarMessage extracts a closed bar from a combined-stream frame.
// Anything else, including still-open candles and malformed frames, is
// dropped.
func (s *StreamingFeed) parseBarMessage(message []byte) (datamodels.BarEvent, bool) {
	var parsed wsCombinedMessage
	if err := json.Unmarshal(message, &parsed); err != nil {
		return datamodels.BarEvent{}, false
	}
	k := parsed.Data.Kline
	if k == nil || !k.Closed {
		return datamodels.BarEvent{}, false
	}
	sub, ok := s.subFromStream(parsed.Stream)
	if !ok {
		return datamodels.BarEvent{}, false
	}

	open, err1 := strconv.ParseFloat(k.Open, 64)
	high, err2 := strconv.ParseFloat(k.High, 64)
	low, err3 := strconv.ParseFloat(k.Low, 64)
	closePrice, err4 := strconv.ParseFloat(k.Close, 64)
	volume, err5 := strconv.ParseFloat(k.Volume, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return datamodels.BarEvent{}, false
	}

	return datamodels.BarEvent{
		Sub: sub,
		Bar: datamodels.NormalizedBar{
			Ts:         time.UnixMilli(k.OpenTime).UTC(),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePrice,
			Volume:     volume,
			Venue:      sub.Venue,
			Symbol:     sub.Symbol,
			AssetClass: sub.AssetClass,
			Timeframe:  sub.Timeframe,
		},
		SourceTs: time.Now().UTC(),
	}, true
}

func (s *StreamingFeed) subFromStream(stream string) (datamodels.StreamSubscription, bool) {
	pair, interval, found := strings.Cut(stream, "@kline_")
	if !found {
		return datamodels.StreamSubscription{}, false
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, sub := range s.streams {
		if strings.EqualFold(sub.Symbol, pair) && binanceStreamIntervals[sub.Timeframe] == interval {
			return sub, true
		}
	}
	return datamodels.StreamSubscription{}, false
}

// broadcast fans a bar out to every subscriber. A subscriber that stays
// blocked past the timeout loses this event rather than stalling the feed.
func (s *StreamingFeed) broadcast(ctx context.Context, event datamodels.BarEvent) {
	s.mutex.Lock()
	subscribers := make([]*datamodels.BarSubscription, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subscribers = append(subscribers, sub)
	}
	s.mutex.Unlock()

	for _, sub := range subscribers {
		if general.ChannelAtLoadLevel(sub.BarChan, 0.8) {
			slog.Warn("Subscriber channel near capacity",
				"feedName", s.GetName(),
				"subscriptionName", sub.SubscriptionName,
				"pending", len(sub.BarChan))
		}
		select {
		case <-ctx.Done():
			return
		case <-sub.DoneChan:
		case sub.BarChan <- event:
		case <-time.After(broadcastTimeout):
			slog.Warn("Subscriber channel was blocked, skipping bar",
				"feedName", s.GetName(),
				"subscriptionName", sub.SubscriptionName,
				"key", event.Sub.Key())
		}
	}
}

func (s *StreamingFeed) pollLoop(ctx context.Context, sub datamodels.StreamSubscription, fetcher ingest.LatestBarFetcher) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	var lastTs time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bar, ok := fetcher.FetchLatestBar(ctx, sub.Symbol, sub.Timeframe)
			if !ok {
				continue
			}
			// Polling re-reads the same bar until a new one closes.
			if !bar.Ts.After(lastTs) {
				continue
			}
			lastTs = bar.Ts
			bar.Venue = sub.Venue
			bar.Timeframe = sub.Timeframe
			s.broadcast(ctx, datamodels.BarEvent{Sub: sub, Bar: bar, SourceTs: time.Now().UTC()})
		}
	}
}

func binanceStreamName(sub datamodels.StreamSubscription) string {
	return strings.ToLower(sub.Symbol) + "@kline_" + binanceStreamIntervals[sub.Timeframe]
}
