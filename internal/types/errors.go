package types

import "fmt"

// ValidationError reports bad or missing input data. It aborts the whole run.
type ValidationError struct {
	// Source is the spreadsheet (or config) the problem was found in.
	Source string
	// Field is the column or setting involved, if any.
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	msg := "validation error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// TemplateError reports a template document that cannot be opened or parsed.
type TemplateError struct {
	Template string
	Cause    error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: cannot open %s: %v", e.Template, e.Cause)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

// PersistenceError reports a generated document that could not be saved.
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: cannot save %s: %v", e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// ConversionError reports a document whose PDF export exhausted its retries.
type ConversionError struct {
	File     string
	Attempts int
	Cause    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: %s failed after %d attempt(s): %v", e.File, e.Attempts, e.Cause)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

// RasterizationError reports a PDF that could not be rendered or written as images.
type RasterizationError struct {
	File string
	// Page is 1-based; zero means the failure was not page specific.
	Page  int
	Cause error
}

func (e *RasterizationError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("rasterization error: %s page %d: %v", e.File, e.Page, e.Cause)
	}
	return fmt.Sprintf("rasterization error: %s: %v", e.File, e.Cause)
}

func (e *RasterizationError) Unwrap() error { return e.Cause }

// StampingError reports a stamp that could not be applied, or a missing
// stamp source (directory or global image) which is fatal to the stage.
type StampingError struct {
	File    string
	Company string
	Cause   error
}

func (e *StampingError) Error() string {
	switch {
	case e.File != "" && e.Company != "":
		return fmt.Sprintf("stamping error: %s (company %s): %v", e.File, e.Company, e.Cause)
	case e.File != "":
		return fmt.Sprintf("stamping error: %s: %v", e.File, e.Cause)
	default:
		return fmt.Sprintf("stamping error: %v", e.Cause)
	}
}

func (e *StampingError) Unwrap() error { return e.Cause }
