package domain

import "fmt"

// Failure reasons recorded on entries that reach the failed stage.
const (
	ReasonPaywalled    = "paywalled"
	ReasonScrapeError  = "scrape_error"
	ReasonRewriteError = "rewrite_error"
	ReasonPublishError = "publish_error"
	ReasonStorageError = "storage_error"
)

// ScrapeError marks a transient site-side fetch or parse failure.
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// ProviderError marks an unavailable AI backend or a malformed response.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PublishError marks a rejected or unreachable publishing target.
type PublishError struct {
	Status string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("publish (%s): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("publish: %v", e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// StorageError marks a persistence I/O failure. Fatal for the current
// entry; the only error class allowed to abort a whole run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
