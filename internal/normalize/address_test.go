package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsuite/backend/internal/domain"
)

func TestParseAddress_AngleBracketForm(t *testing.T) {
	addr := ParseAddress("Jane Doe <jane@x.com>")
	assert.Equal(t, "Jane Doe", addr.Name)
	assert.Equal(t, "jane@x.com", addr.Address)
}

func TestParseAddress_BareForm(t *testing.T) {
	addr := ParseAddress("jane@x.com")
	assert.Equal(t, "jane@x.com", addr.Name)
	assert.Equal(t, "jane@x.com", addr.Address)
}

func TestParseAddress_QuotedDisplayName(t *testing.T) {
	addr := ParseAddress(`"Doe, Jane" <jane@x.com>`)
	assert.Equal(t, "Doe, Jane", addr.Name)
	assert.Equal(t, "jane@x.com", addr.Address)
}

func TestParseAddress_StructuredObject(t *testing.T) {
	t.Run("name 和 email 键", func(t *testing.T) {
		addr := ParseAddress(map[string]interface{}{"name": "Bob", "email": "bob@x.com"})
		assert.Equal(t, "Bob", addr.Name)
		assert.Equal(t, "bob@x.com", addr.Address)
	})

	t.Run("displayName 和 address 键", func(t *testing.T) {
		addr := ParseAddress(map[string]interface{}{"displayName": "Carol", "address": "carol@x.com"})
		assert.Equal(t, "Carol", addr.Name)
		assert.Equal(t, "carol@x.com", addr.Address)
	})

	t.Run("缺显示名时用地址", func(t *testing.T) {
		addr := ParseAddress(map[string]interface{}{"email": "dave@x.com"})
		assert.Equal(t, "dave@x.com", addr.Name)
	})
}

func TestParseAddress_DegradesToUnknown(t *testing.T) {
	cases := []interface{}{
		"not an address",
		"",
		"   ",
		map[string]interface{}{"name": "no address"},
		12345,
		nil,
	}
	for _, in := range cases {
		addr := ParseAddress(in)
		assert.Equal(t, domain.UnknownAddress(), addr, "input %v", in)
	}
}

func TestParseAddressList_CommaJoined(t *testing.T) {
	list := ParseAddressList("a@x.com, Bob <b@x.com>, c@x.com")
	require.Len(t, list, 3)
	assert.Equal(t, "a@x.com", list[0].Address)
	assert.Equal(t, "Bob", list[1].Name)
	assert.Equal(t, "b@x.com", list[1].Address)
	assert.Equal(t, "c@x.com", list[2].Address)
}

func TestParseAddressList_QuotedCommaNotSplit(t *testing.T) {
	list := ParseAddressList(`"Doe, Jane" <jane@x.com>, bob@x.com`)
	require.Len(t, list, 2)
	assert.Equal(t, "Doe, Jane", list[0].Name)
	assert.Equal(t, "bob@x.com", list[1].Address)
}

func TestParseAddressList_ArrayForms(t *testing.T) {
	t.Run("字符串数组", func(t *testing.T) {
		list := ParseAddressList([]interface{}{"a@x.com", "b@x.com"})
		require.Len(t, list, 2)
	})

	t.Run("对象数组", func(t *testing.T) {
		list := ParseAddressList([]interface{}{
			map[string]interface{}{"email": "a@x.com"},
			"Bob <b@x.com>",
		})
		require.Len(t, list, 2)
		assert.Equal(t, "a@x.com", list[0].Address)
		assert.Equal(t, "Bob", list[1].Name)
	})

	t.Run("单个对象包装成列表", func(t *testing.T) {
		list := ParseAddressList(map[string]interface{}{"email": "solo@x.com"})
		require.Len(t, list, 1)
	})

	t.Run("空输入", func(t *testing.T) {
		assert.Empty(t, ParseAddressList(nil))
		assert.Empty(t, ParseAddressList(""))
	})
}
