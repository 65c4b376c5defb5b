package repository

// MessageBus publishes committed ledger events to interested collaborators.
type MessageBus interface {
	Publish(topic string, data []byte) error
}
