package alerting

import (
	"context"
	"errors"
	"fmt"
)

// Attachment 是随告警发送的附件，例如历史走势图。
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notification 封装一次告警。
type Notification struct {
	Trigger     string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Notifier 定义告警输送接口。投递失败必须以 error 返回。
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// Fanout 将同一告警发往多个通道。
type Fanout struct {
	channels map[string]Notifier
	order    []string
}

// NewFanout 构造多通道告警器。
func NewFanout() *Fanout {
	return &Fanout{channels: make(map[string]Notifier)}
}

// Add registers a channel under name. Re-adding a name replaces the previous notifier.
func (f *Fanout) Add(name string, n Notifier) {
	if _, exists := f.channels[name]; !exists {
		f.order = append(f.order, name)
	}
	f.channels[name] = n
}

// Len returns the number of registered channels.
func (f *Fanout) Len() int {
	return len(f.order)
}

// Channels lists channel names in registration order.
func (f *Fanout) Channels() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Notify 依次投递到所有通道，所有失败合并返回。
func (f *Fanout) Notify(ctx context.Context, note Notification) error {
	if len(f.order) == 0 {
		return errors.New("no alert channels configured")
	}
	var errs []error
	for _, name := range f.order {
		if err := f.channels[name].Notify(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (*Fanout)(nil)
