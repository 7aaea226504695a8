package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the wire discriminator of a message.
type Type string

const (
	TypeShowNotification Type = "SHOW_NOTIFICATION"
	TypeCheckReminders   Type = "CHECK_REMINDERS"
	TypeLog              Type = "SW_LOG"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Message is one of ShowNotification, CheckReminders or Log.
type Message interface {
	Type() Type
}

// ShowNotification asks the context owning the notification channel to
// display a notification.
type ShowNotification struct {
	Title string
	Body  string
	Tag   string
	Icon  string
}

// CheckReminders asks the background context to run a reminder pass.
type CheckReminders struct{}

// Log carries one diagnostic line from the background to the foreground.
type Log struct {
	Msg string
}

func (ShowNotification) Type() Type { return TypeShowNotification }
func (CheckReminders) Type() Type   { return TypeCheckReminders }
func (Log) Type() Type              { return TypeLog }

type envelope struct {
	Type  Type   `json:"type"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Msg   string `json:"msg,omitempty"`
}

// Encode renders m as {"type": ..., fields...}.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Type()}
	switch v := m.(type) {
	case ShowNotification:
		env.Title, env.Body, env.Tag, env.Icon = v.Title, v.Body, v.Tag, v.Icon
	case CheckReminders:
	case Log:
		env.Msg = v.Msg
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
	return json.Marshal(env)
}

// Decode parses the wire form produced by Encode.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch env.Type {
	case TypeShowNotification:
		return ShowNotification{Title: env.Title, Body: env.Body, Tag: env.Tag, Icon: env.Icon}, nil
	case TypeCheckReminders:
		return CheckReminders{}, nil
	case TypeLog:
		return Log{Msg: env.Msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}
