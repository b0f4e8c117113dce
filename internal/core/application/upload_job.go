package application

import (
	"context"
	"sync"

	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
)

// UploadResult is the outcome of an upload job. Session is nil if Err is set.
type UploadResult struct {
	Fingerprint fingerprint.Digest
	Session     *domain.Session
	Err         error
}

// UploadJob is a handle to a document being fingerprinted and registered in
// background.
type UploadJob struct {
	cancel context.CancelFunc
	done   chan UploadResult
	once   *sync.Once
}

func newUploadJob(cancel context.CancelFunc) *UploadJob {
	return &UploadJob{
		cancel: cancel,
		done:   make(chan UploadResult, 1),
		once:   &sync.Once{},
	}
}

// Cancel abandons the upload. If the fingerprint is not ready yet, no
// session is opened for the document.
func (j *UploadJob) Cancel() {
	j.cancel()
}

// Done returns the channel the result of the job is sent to, exactly once.
func (j *UploadJob) Done() <-chan UploadResult {
	return j.done
}

func (j *UploadJob) finish(result UploadResult) {
	j.once.Do(func() {
		j.done <- result
		close(j.done)
	})
}
