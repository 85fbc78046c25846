package smssvc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

const consoleProvider = "console"

// consoleSender prints messages instead of sending them. Used in debug mode.
type consoleSender struct {
	out io.Writer
}

var _ core.SmsSender = (*consoleSender)(nil)

func NewConsoleSender(out io.Writer) core.SmsSender {
	return &consoleSender{out: out}
}

func (s *consoleSender) Send(ctx context.Context, msg core.SmsMessage) (core.SmsReceipt, error) {
	if err := ctx.Err(); err != nil {
		return core.SmsReceipt{Provider: consoleProvider}, err
	}
	id := uuid.New().String()
	_, _ = fmt.Fprintf(s.out, "SMS %s to %s (%d chars)\n%s\n", id, msg.To, len([]rune(msg.Body)), msg.Body)
	return core.SmsReceipt{Provider: consoleProvider, MessageID: id}, nil
}

// New returns the sender configured by conf.Sms.Provider.
func New(conf *core.Config, out io.Writer) core.SmsSender {
	if conf.Sms.Provider == gatewayProvider {
		return NewGatewaySender(conf)
	}
	return NewConsoleSender(out)
}

// SenderMock records messages. Sends to numbers listed in Failing fail.
type SenderMock struct {
	mu      sync.Mutex
	sent    []core.SmsMessage
	Failing map[string]error
}

var _ core.SmsSender = (*SenderMock)(nil)

func NewSenderMock() *SenderMock {
	return &SenderMock{Failing: make(map[string]error)}
}

func (s *SenderMock) Send(_ context.Context, msg core.SmsMessage) (core.SmsReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.Failing[msg.To]; ok {
		return core.SmsReceipt{Provider: "mock"}, err
	}
	s.sent = append(s.sent, msg)
	return core.SmsReceipt{Provider: "mock", MessageID: uuid.New().String()}, nil
}

func (s *SenderMock) Sent() []core.SmsMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SmsMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
