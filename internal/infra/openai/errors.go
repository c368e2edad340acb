package openai

import (
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"dictation/internal/domain"
)

const providerName = "openai"

// classify turns go-openai errors into domain errors. Transport errors are
// returned unchanged so the retry policy can inspect them.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		body := fmt.Sprintf("%s %s %v", apiErr.Type, apiErr.Message, apiErr.Code)
		return &domain.Error{
			Kind:     domain.KindForStatus(apiErr.HTTPStatusCode, body),
			Provider: providerName,
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			Cause:    err,
		}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &domain.Error{
			Kind:     domain.KindForStatus(reqErr.HTTPStatusCode, reqErr.Error()),
			Provider: providerName,
			Status:   reqErr.HTTPStatusCode,
			Cause:    err,
		}
	}

	return err
}
