package domain

// SendMessageCommand is a validated sendMessage request.
type SendMessageCommand struct {
	Conn ConnectionID
	From Identity `validate:"notblank"`
	To   Identity `validate:"notblank"`
	Text string   `validate:"notblank"`
}

// CheckIdentityResult answers whether an identity was ever registered.
type CheckIdentityResult struct {
	Exists bool
	Info   *UserInfo
}

// MessagesResult is the history of a pair seen from one side.
// Peer stays nil when the other identity never registered.
type MessagesResult struct {
	Messages []Message
	Peer     *UserInfo
}
