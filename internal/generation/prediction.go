// Package generation drives the hosted image-generation API: it creates a
// prediction, waits for it with exponential backoff, and archives the output
// image in object storage.
package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

var (
	ErrCanceled     = errors.New("prediction canceled")
	ErrTimeout      = errors.New("prediction did not finish in time")
	ErrNoOutput     = errors.New("prediction has no output")
	ErrInvalidInput = errors.New("invalid generation input")
)

// FailedError is returned when the API reports the prediction failed
type FailedError struct {
	ID     string
	Reason string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("prediction %s failed", e.ID)
	}
	return fmt.Sprintf("prediction %s failed: %s", e.ID, e.Reason)
}

type Prediction struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Output    Output    `json:"output"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// Output is a list of URLs; the API returns either one string or an array.
type Output []string

func (o *Output) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*o = nil
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = Output{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("prediction output: %w", err)
	}
	*o = list
	return nil
}

type CreateInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}
