package domain

// TopicAll is the wildcard topic. It matches every notification, but only for sessions
// that subscribed to it explicitly.
const TopicAll = "all"

// Protocol event names exchanged with subscribers.
const (
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventNewTransaction = "newTransaction"
)

// Destinations returns the topics a notification for account is delivered to.
// The result never contains duplicates.
func Destinations(account string) []string {
	if account == TopicAll {
		return []string{TopicAll}
	}
	return []string{TopicAll, account}
}
