package domain

import "strings"

// Engine identifies which side of the transcription dispatcher produced a result.
type Engine string

const (
	EngineLocal Engine = "local"
	EngineCloud Engine = "cloud"
)

type TranscriptionRequest struct {
	Audio              AudioBuffer
	Preferred          Engine
	Model              string
	CloudModel         string
	Language           string
	AllowCloudFallback bool
}

// TranscriptionResult is either a non-empty transcript with Succeeded set, or
// a failure carrying Kind. Build it through TranscriptionSuccess or
// TranscriptionFailure.
type TranscriptionResult struct {
	Text         string
	Source       Engine
	Succeeded    bool
	Kind         ErrorKind
	Err          error
	FallbackUsed bool
}

// TranscriptionSuccess applies the empty-result guard: blank text is never a success.
func TranscriptionSuccess(text string, source Engine) TranscriptionResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return TranscriptionResult{
			Source: source,
			Kind:   KindEmptyResult,
			Err:    NewError(KindEmptyResult, string(source), "transcript is empty"),
		}
	}
	return TranscriptionResult{Text: text, Source: source, Succeeded: true}
}

func TranscriptionFailure(source Engine, err error) TranscriptionResult {
	kind := KindOf(err)
	if kind == "" {
		kind = KindUnknown
	}
	return TranscriptionResult{Source: source, Kind: kind, Err: err}
}
