package filesystem

// Observer records retry metrics. The metrics package provides the
// implementation, which keeps filesystem free of a metrics import.
type Observer interface {
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveStaleError(retryOp, volume string)
}

var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

// observe returns the observer, which may be nil in tests.
func observe() Observer {
	return defaultObserver
}
