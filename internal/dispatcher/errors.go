package dispatcher

import "fmt"

// CredentialError means an account's credential bundle is missing or invalid,
// or the account's own platform identity could not be resolved.
type CredentialError struct {
	AccountID string
	Err       error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credentials for account %s: %v", e.AccountID, e.Err)
	}
	return fmt.Sprintf("credentials for account %s: missing or invalid", e.AccountID)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// DataConsistencyError means the platform returned mentions without a
// newest-id marker. The cursor is not advanced so the same window is retried
// on the next tick.
type DataConsistencyError struct {
	AccountID string
}

func (e *DataConsistencyError) Error() string {
	return fmt.Sprintf("mentions without newest id for account %s", e.AccountID)
}

// DownstreamError means the response engine or the reply post failed.
// Remaining mentions in the cycle are skipped and quota is not consumed.
type DownstreamError struct {
	AccountID string
	MentionID string
	Err       error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("processing mention %s for account %s: %v", e.MentionID, e.AccountID, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }
