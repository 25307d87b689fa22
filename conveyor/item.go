package conveyor

import (
	"time"

	"github.com/sarchlab/beltsim/idgen"
)

// An Item is one piece travelling along the belt.
type Item struct {
	ID        idgen.ID  `json:"id"`
	Position  float64   `json:"position"`
	Speed     float64   `json:"speed"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemView is the part of an item that a renderer needs.
type ItemView struct {
	ID       idgen.ID `json:"id"`
	Position float64  `json:"position"`
}

// View returns the render view of the item.
func (i Item) View() ItemView {
	return ItemView{ID: i.ID, Position: i.Position}
}

func (i Item) exited(beltLength float64) bool {
	return i.Position >= beltLength
}
