package mqtt

// Topic prefixes for DoorOpener announcements.
//
// Everything lives under the dooropener/ root: event topics carry one
// message per occurrence, the status topic is retained so subscribers see
// the relay's liveness immediately.
const (
	// TopicPrefix is the base for all relay topics.
	TopicPrefix = "dooropener"

	// TopicStatus is the retained relay liveness topic, also used as the
	// Last Will target.
	TopicStatus = TopicPrefix + "/status"

	// TopicEventAttempt announces every evaluated gate attempt.
	TopicEventAttempt = TopicPrefix + "/event/attempt"

	// TopicEventOpen announces granted attempts whose open command was
	// forwarded, so automations can react to the door actually opening.
	TopicEventOpen = TopicPrefix + "/event/open"
)
