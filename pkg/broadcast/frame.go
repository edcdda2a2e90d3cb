package broadcast

// Frame operations.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opAnnounce    = "announce"
	opChanged     = "changed"
)

// frame is the JSON message exchanged between hub and clients.
type frame struct {
	Op  string `json:"op"`
	Key string `json:"key"`
}
