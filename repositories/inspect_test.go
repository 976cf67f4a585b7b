package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func Test_Describe_Every_Entry_Of_A_Conversation(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	// Given a single message between alice and bob
	_, err := store.Append("bob", "alice", "hi")
	req.NoError(err)

	// When every entry of the store is described
	kinds := map[string][]string{}
	err = store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			kind, detail := Describe(string(item.Key()), val)
			kinds[kind] = append(kinds[kind], detail)
		}
		return nil
	})
	req.NoError(err)

	// Then the header, both memberships and the message are readable
	req.Equal([]string{"alice__bob (1 messages)"}, kinds["CONVERSATION"])
	req.ElementsMatch([]string{"alice in alice__bob", "bob in alice__bob"}, kinds["MEMBER"])
	req.Equal([]string{"#1 bob -> alice: hi"}, kinds["MESSAGE"])
}

func Test_Describe_Corrupt_And_Unknown_Entries(t *testing.T) {
	req := require.New(t)

	kind, detail := Describe("msg:00:00:0000000000000000000", []byte{0xff})
	req.Equal("MESSAGE", kind)
	req.Equal("Error: unmarshal failed", detail)

	kind, detail = Describe("member:zz", nil)
	req.Equal("MEMBER", kind)
	req.Equal("Error: malformed key", detail)

	kind, _ = Describe("other", []byte("x"))
	req.Equal("UNKNOWN", kind)
}
