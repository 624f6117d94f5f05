package errors

import "fmt"

// Error codes
const (
	CodePipeline   = "PIPELINE_ERROR"
	CodeScrape     = "SCRAPE_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
	CodeStore      = "STORE_ERROR"
	CodeModel      = "MODEL_ERROR"
)

type PipelineError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func NewPipelineError(message, code string, statusCode int, context map[string]any) *PipelineError {
	return &PipelineError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

type ScrapeError struct {
	*PipelineError
	PlayerID int64
	Stage    string
}

func NewScrapeError(message, stage string, playerID int64, cause error) *ScrapeError {
	return &ScrapeError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeScrape,
			StatusCode: 502,
			Context: map[string]any{
				"player_id": playerID,
				"stage":     stage,
			},
			Cause: cause,
		},
		PlayerID: playerID,
		Stage:    stage,
	}
}

type ValidationError struct {
	*PipelineError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*PipelineError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type StoreError struct {
	*PipelineError
	Operation string
	Table     string
}

func NewStoreError(message, operation, table string, cause error) *StoreError {
	return &StoreError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeStore,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"table":     table,
			},
			Cause: cause,
		},
		Operation: operation,
		Table:     table,
	}
}

type ModelError struct {
	*PipelineError
	Model string
	Stage string
}

func NewModelError(message, model, stage string, cause error) *ModelError {
	return &ModelError{
		PipelineError: &PipelineError{
			Message:    message,
			Code:       CodeModel,
			StatusCode: 500,
			Context: map[string]any{
				"model": model,
				"stage": stage,
			},
			Cause: cause,
		},
		Model: model,
		Stage: stage,
	}
}
