package main

import (
	"fyne.io/fyne"
)

type squareRow struct{ minSize int }

// NewSquareRowLayout arranges children in one row of equal squares, each at
// least minSize on a side.
func NewSquareRowLayout(minSize int) fyne.Layout {
	return squareRow{minSize: minSize}
}

func (r squareRow) MinSize(objects []fyne.CanvasObject) fyne.Size {
	var min int
	for _, obj := range objects {
		size := obj.MinSize()
		if size.Height > min {
			min = size.Height
		}
		if size.Width > min {
			min = size.Width
		}
	}
	if min < r.minSize {
		min = r.minSize
	}
	return fyne.NewSize(min*len(objects), min)
}

func (r squareRow) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	if len(objects) == 0 {
		return
	}

	orig := size
	size.Width = size.Width / len(objects)

	if size.Height < size.Width {
		size.Width = size.Height
	} else {
		size.Height = size.Width
	}
	yOffset := (orig.Height - size.Height) / 2

	for i, obj := range objects {
		obj.Move(fyne.NewPos(i*size.Width, yOffset))
		obj.Resize(size)
	}
}
