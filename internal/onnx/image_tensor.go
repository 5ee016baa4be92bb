package onnx

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/bannerscan/internal/mempool"
)

// Tensor is a row-major float32 tensor; images use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Release returns the tensor data to the buffer pool. The tensor must not be
// used afterwards.
func (t Tensor) Release() {
	mempool.PutFloat32(t.Data)
}

// ImageToTensor stretches img to width x height and returns a [1, 3, H, W]
// tensor with RGB values scaled to [0, 1]. Call Release when done.
func ImageToTensor(img image.Image, width, height int) (Tensor, error) {
	if img == nil {
		return Tensor{}, fmt.Errorf("nil image")
	}
	if width <= 0 || height <= 0 {
		return Tensor{}, fmt.Errorf("invalid tensor size %dx%d", width, height)
	}

	resized := imaging.Resize(img, width, height, imaging.Linear)
	plane := width * height
	data := mempool.GetFloat32(3 * plane)
	for y := range height {
		row := resized.Pix[y*resized.Stride:]
		for x := range width {
			p := row[x*4:]
			i := y*width + x
			data[i] = float32(p[0]) / 255
			data[plane+i] = float32(p[1]) / 255
			data[2*plane+i] = float32(p[2]) / 255
		}
	}
	return Tensor{Data: data, Shape: []int64{1, 3, int64(height), int64(width)}}, nil
}
