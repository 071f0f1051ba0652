package service

import (
	"context"
	"sync"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel replays canned chunks and records what it was asked.
type fakeChatModel struct {
	mu        sync.Mutex
	chunks    []string
	streamErr error // returned after the chunks
	startErr  error
	reply     string
	calls     [][]*schema.Message
}

func (m *fakeChatModel) record(in []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
}

func (m *fakeChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *fakeChatModel) lastCall() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func (m *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...einoModel.Option) (*schema.Message, error) {
	m.record(in)
	if m.startErr != nil {
		return nil, m.startErr
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(_ context.Context, in []*schema.Message, _ ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(in)
	if m.startErr != nil {
		return nil, m.startErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(m.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range m.chunks {
			if closed := sw.Send(schema.AssistantMessage(c, nil), nil); closed {
				return
			}
		}
		if m.streamErr != nil {
			sw.Send(nil, m.streamErr)
		}
	}()
	return sr, nil
}

func collect(deltas <-chan string, errs <-chan error) (string, error) {
	var text string
	for d := range deltas {
		text += d
	}
	return text, <-errs
}
