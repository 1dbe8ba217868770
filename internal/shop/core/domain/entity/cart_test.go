package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartTotalsScenario(t *testing.T) {
	lines := []CartLine{
		{ProductID: "A", Name: "Lantern", Price: 10, Quantity: 2},
		{ProductID: "B", Name: "Mug", Price: 5, Quantity: 1},
	}
	assert.InDelta(t, 25.0, CartTotal(lines), 1e-9)
	assert.Equal(t, 3, CartCount(lines))
	assert.InDelta(t, 20.0, lines[0].Subtotal(), 1e-9)

	assert.Zero(t, CartTotal(nil))
	assert.Zero(t, CartCount(nil))
}

func TestFindLine(t *testing.T) {
	lines := []CartLine{{ProductID: "A"}, {ProductID: "B"}}
	assert.Equal(t, 1, FindLine(lines, "B"))
	assert.Equal(t, -1, FindLine(lines, "C"))
}

func TestReconcileLinePrecedence(t *testing.T) {
	server := CartLine{ProductID: "A", Name: "server name", Price: 12, Quantity: 3, ImageRef: "server.png"}

	t.Run("no local line keeps server", func(t *testing.T) {
		assert.Equal(t, server, ReconcileLine(server, nil))
	})

	t.Run("local display fields win", func(t *testing.T) {
		local := CartLine{ProductID: "A", Name: "local name", Price: 10, Quantity: 1, ImageRef: "local.png"}
		got := ReconcileLine(server, &local)
		assert.Equal(t, CartLine{ProductID: "A", Name: "local name", Price: 10, Quantity: 3, ImageRef: "local.png"}, got)
	})

	t.Run("server fills what local lacks", func(t *testing.T) {
		local := CartLine{ProductID: "A", Name: "local name"}
		got := ReconcileLine(server, &local)
		assert.Equal(t, "local name", got.Name)
		assert.Equal(t, 12.0, got.Price)
		assert.Equal(t, "server.png", got.ImageRef)
		assert.Equal(t, 3, got.Quantity)
	})
}

func TestReconcileLines(t *testing.T) {
	server := []CartLine{
		{ProductID: "B", Quantity: 1},
		{ProductID: "A", Quantity: 2},
		{ProductID: "Z", Quantity: 0},
		{ProductID: "C", Name: "from server", Price: 3, Quantity: 4},
	}
	known := []CartLine{
		{ProductID: "A", Name: "old A", Price: 10, Quantity: 1},
		{ProductID: "B", Name: "B", Price: 5, Quantity: 9},
		{ProductID: "A", Name: "new A", Price: 11},
	}

	got := ReconcileLines(server, known...)
	assert.Equal(t, []CartLine{
		{ProductID: "B", Name: "B", Price: 5, Quantity: 1},
		{ProductID: "A", Name: "new A", Price: 11, Quantity: 2},
		{ProductID: "C", Name: "from server", Price: 3, Quantity: 4},
	}, got)

	assert.Empty(t, ReconcileLines(nil, known...))
}

func TestLineFromSnapshot(t *testing.T) {
	p := Product{ID: "A", Name: "Tent", Price: 99.5, ImageRef: "tent.png", Stock: 3}
	assert.Equal(t, CartLine{ProductID: "A", Name: "Tent", Price: 99.5, ImageRef: "tent.png"}, LineFromSnapshot(p.Snapshot()))
}
