package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	pairs := [][2]Identity{
		{"alice", "bob"},
		{"bob", "alice"},
		{"zed", "Zed"},
		{"same", "same"},
		{"a__b", "c"},
		{"", "x"},
	}
	for _, p := range pairs {
		req.Equal(Key(p[0], p[1]), Key(p[1], p[0]), "pair %v", p)
	}
}

func TestKey_Separator_In_Identity_Does_Not_Collide(t *testing.T) {
	req := require.New(t)

	// Given two different pairs that would render the same joined string
	k1 := Key("a__b", "c")
	k2 := Key("a", "b__c")

	// Then their keys are still different
	req.Equal(k1.String(), k2.String())
	req.NotEqual(k1, k2)
}

func TestConversationKey_Peer(t *testing.T) {
	req := require.New(t)
	key := Key("bob", "alice")

	req.Equal(Identity("alice"), key.A)
	req.Equal(Identity("bob"), key.Peer("alice"))
	req.Equal(Identity("alice"), key.Peer("bob"))
	req.True(key.Has("bob"))
	req.False(key.Has("carol"))
	req.Equal(Identity("me"), Key("me", "me").Peer("me"))
}

func TestIdentity_Valid(t *testing.T) {
	req := require.New(t)
	req.True(Identity("alice").Valid())
	req.False(Identity("").Valid())
	req.False(Identity("  \t").Valid())
}

func TestIsBlank(t *testing.T) {
	req := require.New(t)
	req.False(IsBlank("  hi  "))
	req.True(IsBlank(" \n "))
	req.True(IsBlank(""))
}
