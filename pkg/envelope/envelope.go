// Package envelope is the JSON frame exchanged over the composer socket.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func New(action string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewEvent is an unsolicited frame, such as an image finishing in the
// background.
func NewEvent(action string, data interface{}) (Envelope, error) {
	e := New(action)
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewReply(original Envelope, data interface{}) (Envelope, error) {
	e := New(original.Action + ".result")
	e.ReplyTo = original.ID
	e.UserID = original.UserID
	e.Username = original.Username
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewError(original Envelope, code int, message string) Envelope {
	e := New(original.Action + ".error")
	e.ReplyTo = original.ID
	e.UserID = original.UserID
	e.Error = &ErrorPayload{Code: code, Message: message}
	return e
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(e.Data, &v)
	return v, err
}
