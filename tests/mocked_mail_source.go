package tests

import (
	"context"
	"time"

	"github.com/brpix/pix-processor/utils"
)

type MockMailMessage struct {
	ID       string
	Body     string
	Unread   bool
	Failed   bool
	Deleted  bool
	Received time.Time
}

// MockMailSource keeps an ordered in-memory mailbox so sweeps can be run
// against scripted messages.
type MockMailSource struct {
	Messages []*MockMailMessage

	ListErr   error
	GetErr    error
	ModifyErr error
}

func (m *MockMailSource) ListUnread(ctx context.Context) utils.Result[[]string] {
	if m.ListErr != nil {
		return utils.FailedResult[[]string](m.ListErr)
	}

	ids := make([]string, 0)
	for _, message := range m.Messages {
		if message.Unread && !message.Deleted {
			ids = append(ids, message.ID)
		}
	}

	return utils.SuccessResult(ids)
}

func (m *MockMailSource) ListBefore(ctx context.Context, cutoff time.Time) utils.Result[[]string] {
	if m.ListErr != nil {
		return utils.FailedResult[[]string](m.ListErr)
	}

	ids := make([]string, 0)
	for _, message := range m.Messages {
		if !message.Deleted && message.Received.Before(cutoff) {
			ids = append(ids, message.ID)
		}
	}

	return utils.SuccessResult(ids)
}

func (m *MockMailSource) GetBody(ctx context.Context, id string) utils.Result[string] {
	if m.GetErr != nil {
		return utils.FailedResult[string](m.GetErr)
	}

	message := m.find(id)
	if message == nil {
		return utils.FailedResult[string](ErrRecordNotFound)
	}

	return utils.SuccessResult(message.Body)
}

func (m *MockMailSource) ClearUnread(ctx context.Context, id string) error {
	if m.ModifyErr != nil {
		return m.ModifyErr
	}

	if message := m.find(id); message != nil {
		message.Unread = false
	}
	return nil
}

func (m *MockMailSource) TagFailed(ctx context.Context, id string) error {
	if m.ModifyErr != nil {
		return m.ModifyErr
	}

	if message := m.find(id); message != nil {
		message.Unread = false
		message.Failed = true
	}
	return nil
}

func (m *MockMailSource) ArchiveOrDelete(ctx context.Context, id string) error {
	if m.ModifyErr != nil {
		return m.ModifyErr
	}

	if message := m.find(id); message != nil {
		message.Deleted = true
	}
	return nil
}

func (m *MockMailSource) find(id string) *MockMailMessage {
	for _, message := range m.Messages {
		if message.ID == id {
			return message
		}
	}
	return nil
}
