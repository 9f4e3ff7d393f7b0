package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

// relayFrame is what processes exchange on lowcode.chat.<bot>.
type relayFrame struct {
	Origin  string             `json:"origin"`
	Message *model.ChatMessage `json:"message"`
}

// StartRelay subscribes to every chat subject and delivers messages
// published by other processes to local clients. Frames this hub published
// itself are skipped since Broadcast already delivered them. The returned
// function unsubscribes and waits for the relay goroutine to exit.
func (h *Hub) StartRelay(sub events.Subscriber) (func(), error) {
	ch, cancel, err := sub.Subscribe(events.ChatSubjectPrefix + ">")
	if err != nil {
		return nil, fmt.Errorf("subscribe chat relay: %w", err)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for m := range ch {
			h.handleRelay(m)
		}
	}()
	slog.Info("chat: relay started", "subject", events.ChatSubjectPrefix+">")
	return func() {
		cancel()
		wg.Wait()
	}, nil
}

func (h *Hub) handleRelay(m events.Message) {
	botID, ok := events.BotFromChatSubject(m.Subject)
	if !ok {
		return
	}
	var frame relayFrame
	if err := json.Unmarshal(m.Data, &frame); err != nil || frame.Message == nil {
		slog.Warn("chat: bad relay frame", "subject", m.Subject, "err", err)
		return
	}
	if frame.Origin == h.origin || frame.Message.BotID != botID {
		return
	}
	h.deliver(frame.Message)
}
