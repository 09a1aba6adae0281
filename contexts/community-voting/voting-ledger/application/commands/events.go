package commands

import (
	"encoding/json"
	"time"

	"voteledger/contexts/community-voting/voting-ledger/ports"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Entity events are partitioned by name so consumers see one entity's
	// history in commit order.
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}
