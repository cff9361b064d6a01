package game

import (
	"math/rand"
)

// QRMaker saves a join QR image for a card number and returns its file name.
type QRMaker interface {
	MakeCode(number int) (string, error)
}

// Factory deals cards from an imported playlist. It remembers which track
// indexes landed on any card so the game only plays tracks that can win.
type Factory struct {
	titles  []string
	active  map[int]bool
	qrMaker QRMaker
}

func NewFactory(titles []string, qrMaker QRMaker) *Factory {
	return &Factory{titles: titles, active: make(map[int]bool), qrMaker: qrMaker}
}

// MakeCard deals one card of 24 distinct random titles around the free
// center cell.
func (f *Factory) MakeCard(number int) (*Card, error) {
	if len(f.titles) < CardCells-1 {
		return nil, ErrTooFewTracks
	}
	perm := rand.Perm(len(f.titles))[:CardCells-1]
	for _, idx := range perm {
		f.active[idx] = true
	}

	cells := make([]string, 0, CardCells)
	for _, idx := range perm {
		cells = append(cells, f.titles[idx])
	}
	center := len(cells) / 2
	cells = append(cells[:center], append([]string{CenterCell}, cells[center:]...)...)

	card := &Card{Number: number, Cells: cells}
	if f.qrMaker != nil {
		name, err := f.qrMaker.MakeCode(number)
		if err != nil {
			return nil, err
		}
		card.QRFile = name
	}
	return card, nil
}

// ActiveIndexes returns every track index that appears on at least one card.
func (f *Factory) ActiveIndexes() []int {
	out := make([]int, 0, len(f.active))
	for idx := range f.active {
		out = append(out, idx)
	}
	return out
}
