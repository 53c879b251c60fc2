package kafka

// Topic definitions for the alert bus
const (
	// TopicAlertEvents carries producer events into the bus (JSON alert.Event envelopes)
	TopicAlertEvents = "alerts.events"

	// TopicSMSJobs carries rendered SMS jobs to the external gateway
	TopicSMSJobs = "alerts.sms"
)

const (
	directionIn  = "consume"
	directionOut = "produce"
)
