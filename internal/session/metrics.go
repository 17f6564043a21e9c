package session

// Metrics receives counters from the control thread. internal/metrics
// provides a Prometheus implementation.
type Metrics interface {
	EventProcessed(kind string)
	EventFailed(kind string, code ErrorCode)
	Reconciled(outcome string)
	AuthorityDenied(action string)
	RegistrySize(n int)
	QueueDepth(n int)
}

type nopMetrics struct{}

func (nopMetrics) EventProcessed(string)         {}
func (nopMetrics) EventFailed(string, ErrorCode) {}
func (nopMetrics) Reconciled(string)             {}
func (nopMetrics) AuthorityDenied(string)        {}
func (nopMetrics) RegistrySize(int)              {}
func (nopMetrics) QueueDepth(int)                {}
