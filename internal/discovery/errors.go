package discovery

import "errors"

var (
	// ErrInvalidTopic indicates a topic filter that is not in the registry.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrContentNotFound indicates a slug filter matched nothing.
	ErrContentNotFound = errors.New("content not found")

	// ErrNoContent indicates discovery completed without finding any items.
	// Callers decide whether this is fatal.
	ErrNoContent = errors.New("no content found")

	// ErrTopicDirUnreadable indicates a topic directory exists but could not be listed.
	ErrTopicDirUnreadable = errors.New("topic directory unreadable")
)
