package model

import (
	"bytes"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleWishlistIsItsOwnInverse(t *testing.T) {
	list := []uint64{3, 7}

	added := ToggleWishlist(list, 9)
	assert.Equal(t, []uint64{3, 7, 9}, added)
	assert.Equal(t, []uint64{3, 7}, list, "input must not change")

	assert.Equal(t, list, ToggleWishlist(added, 9))
	assert.Equal(t, []uint64{7}, ToggleWishlist(list, 3))
	assert.Equal(t, []uint64{1}, ToggleWishlist(nil, 1))
}

func TestReceiptID(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)

	id, err := newReceiptID(now, bytes.NewReader(make([]byte, 64)))
	require.NoError(t, err)
	assert.Equal(t, "RCP-20250301-00000000", id)

	id, err = NewReceiptID(now)
	require.NoError(t, err)
	require.Len(t, id, len("RCP-20250301-")+8)
	for _, r := range strings.TrimPrefix(id, "RCP-20250301-") {
		assert.True(t, strings.ContainsRune(base36, r), "unexpected %q in %s", r, id)
	}

	_, err = newReceiptID(now, iotest.ErrReader(iotest.ErrTimeout))
	assert.Error(t, err)
}

func TestOrderOwnersAndTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{OwnerID: 5, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{OwnerID: 6, Quantity: 1, Price: decimal.RequireFromString("7.50")},
		{OwnerID: 5, Quantity: 1, Price: decimal.RequireFromString("5.00")},
	}}

	assert.Equal(t, []uint64{5, 6}, o.OwnerIDs())
	assert.True(t, o.SuppliedBy(6))
	assert.False(t, o.SuppliedBy(7))
	assert.True(t, decimal.RequireFromString("32.50").Equal(ComputeTotal(o.Items)))
}

func TestStatusEnums(t *testing.T) {
	assert.True(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.True(t, OfferStatus("accepted").Valid())
	assert.False(t, ProductStatus("draft").Valid())
	assert.True(t, ProductType("Buying").Valid())

	r, ok := ParseRole(" Owner ")
	assert.True(t, ok)
	assert.Equal(t, RoleOwner, r)
	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestProductQueryNormalize(t *testing.T) {
	q := ProductQuery{Page: 0, PageSize: 500}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 100, q.PageSize)
	assert.Equal(t, 0, q.Offset())

	q = ProductQuery{Page: 3}.Normalize()
	assert.Equal(t, 20, q.PageSize)
	assert.Equal(t, 40, q.Offset())
}

func TestChatParties(t *testing.T) {
	c := &Chat{UserID: 1, OwnerID: 5}
	assert.True(t, c.Participant(RoleUser, 1))
	assert.True(t, c.Participant(RoleOwner, 5))
	assert.False(t, c.Participant(RoleOwner, 1))
	assert.False(t, c.Participant(RoleAdmin, 1))

	assert.Equal(t, Recipient{Role: RoleOwner, ID: 5}, c.Counterpart(RoleUser))
	assert.Equal(t, Recipient{Role: RoleUser, ID: 1}, c.Counterpart(RoleOwner))
}
