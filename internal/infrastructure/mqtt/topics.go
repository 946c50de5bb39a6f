package mqtt

import "fmt"

// TopicPrefixSystem is the base for this client's own system topics,
// used for its last-will/online-status lifecycle reporting. Bridge and
// device topics are owned by each bridge package (see internal/ezville's
// own Topics type) rather than by the transport layer.
const TopicPrefixSystem = "ezville/system"

// Topics provides builders for this package's own system topics.
type Topics struct{}

// SystemStatus returns the topic this client publishes its online/
// offline lifecycle status to, and configures as its last will.
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemTime returns the time sync topic.
func (Topics) SystemTime() string {
	return fmt.Sprintf("%s/time", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}
