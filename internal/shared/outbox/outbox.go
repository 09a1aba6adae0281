package outbox

// Status values of an outbox row. A row is written pending in the same unit
// as the state change it announces and flips to published once the relay
// hands it to the bus.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
)
