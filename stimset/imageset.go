// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stimset

import (
	"fmt"

	"github.com/emer/etable/etensor"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// ImageSet cuts patches out of a set of images. Patches are kept Buffer
// pixels away from the border, where natural images are often distorted.
type ImageSet struct {
	Images *etensor.Float64 `desc:"[NImages, Y, X] images"`
	Patch  []int            `desc:"[Y, X] size of one patch"`
	Buffer int              `desc:"distance of patches from the image border"`
	Rand   *rand.Rand       `view:"-" desc:"source of patch positions"`
}

// NewImageSet returns an ImageSet over images with the given patch shape
func NewImageSet(images *etensor.Float64, patch []int, buffer int, seed uint64) (*ImageSet, error) {
	if images == nil || images.NumDims() != 3 {
		return nil, fmt.Errorf("%w: images must be [NImages, Y, X]", ErrUnsupportedFormat)
	}
	if len(patch) != 2 {
		return nil, fmt.Errorf("%w: image patches must be 2D, got shape %v", ErrUnsupportedFormat, patch)
	}
	if buffer < 0 {
		buffer = 0
	}
	is := &ImageSet{Images: images, Patch: patch, Buffer: buffer, Rand: rand.New(rand.NewSource(seed))}
	ny, nx := is.span()
	if ny < 1 || nx < 1 {
		return nil, fmt.Errorf("stimset: %dx%d images are too small for %v patches with buffer %d",
			images.Dim(1), images.Dim(2), patch, buffer)
	}
	return is, nil
}

// span returns the number of valid top-left positions along Y and X
func (is *ImageSet) span() (int, int) {
	ny := is.Images.Dim(1) - 2*is.Buffer - is.Patch[0] + 1
	nx := is.Images.Dim(2) - 2*is.Buffer - is.Patch[1] + 1
	return ny, nx
}

func (is *ImageSet) DataSize() int {
	return is.Patch[0] * is.Patch[1]
}

// patchTo copies the patch of image img at y, x into column j of dst
func (is *ImageSet) patchTo(dst *mat.Dense, j, img, y, x int) {
	py, px := is.Patch[0], is.Patch[1]
	for yi := 0; yi < py; yi++ {
		for xi := 0; xi < px; xi++ {
			dst.Set(yi*px+xi, j, is.Images.Value([]int{img, y + yi, x + xi}))
		}
	}
}

func (is *ImageSet) RandBatch(n int) *mat.Dense {
	ny, nx := is.span()
	nimg := is.Images.Dim(0)
	x := mat.NewDense(is.DataSize(), n, nil)
	for j := 0; j < n; j++ {
		img := is.Rand.Intn(nimg)
		y := is.Buffer + is.Rand.Intn(ny)
		xp := is.Buffer + is.Rand.Intn(nx)
		is.patchTo(x, j, img, y, xp)
	}
	return x
}

// AllData returns the non-overlapping patches tiling the inside of every image
func (is *ImageSet) AllData() *mat.Dense {
	ny, nx := is.span()
	py, px := is.Patch[0], is.Patch[1]
	ty := (ny-1)/py + 1
	tx := (nx-1)/px + 1
	nimg := is.Images.Dim(0)
	x := mat.NewDense(is.DataSize(), nimg*ty*tx, nil)
	j := 0
	for img := 0; img < nimg; img++ {
		for yi := 0; yi < ty; yi++ {
			for xi := 0; xi < tx; xi++ {
				is.patchTo(x, j, img, is.Buffer+yi*py, is.Buffer+xi*px)
				j++
			}
		}
	}
	return x
}
