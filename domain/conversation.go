package domain

// ConversationKey identifies the single conversation of an unordered pair.
// It is comparable and holds the pair in canonical order, so identities
// containing separator characters can never collide.
type ConversationKey struct {
	A Identity
	B Identity
}

// Key builds the canonical key of a pair, whatever the argument order.
func Key(a, b Identity) ConversationKey {
	x, y := Canonical(a, b)
	return ConversationKey{A: x, B: y}
}

// Canonical returns the pair in lexicographic order.
func Canonical(a, b Identity) (Identity, Identity) {
	if b < a {
		return b, a
	}
	return a, b
}

func (k ConversationKey) String() string {
	return string(k.A) + "__" + string(k.B)
}

// Has reports whether identity is one of the two members.
func (k ConversationKey) Has(identity Identity) bool {
	return k.A == identity || k.B == identity
}

// Peer returns the other member of the pair.
// A self-conversation returns the identity itself.
func (k ConversationKey) Peer(identity Identity) Identity {
	if k.A == identity {
		return k.B
	}
	return k.A
}

// Conversation is the ordered log between two identities.
type Conversation struct {
	Key      ConversationKey `json:"-"`
	Members  [2]Identity     `json:"members"`
	Messages []Message       `json:"messages"`
}

// ConversationSummary is one entry of an identity's conversation list.
type ConversationSummary struct {
	Peer          Identity `json:"peer"`
	LastMessage   *Message `json:"lastMessage,omitempty"`
	TotalMessages int      `json:"totalMessages"`
}
