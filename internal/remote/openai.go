package remote

import (
	"errors"

	"github.com/openai/openai-go/v3"
)

// FromOpenAI classifies an error returned by the OpenAI SDK.
func FromOpenAI(service string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return StatusError(service, apiErr.StatusCode, apiErr.Message)
	}
	return TransportError(service, err)
}
