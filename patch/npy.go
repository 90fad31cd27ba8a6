package patch

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/facekit/conifer/sample"
)

/*
LoadStack reads a training set prepared as two NumPy arrays of
float64: patches with shape [n, channels, rows, cols] and their
displacement targets with shape [n, dims]. Sampling pipelines dump
their crops this way so trainers in different toolchains can share
them.
*/
func LoadStack(patchPath, offsetPath string) ([]sample.Sample, error) {
	patches, shape, err := readArray(patchPath)
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("loading patches from %s: shape %v is not [n, channels, rows, cols]", patchPath, shape)
	}
	n, channels, rows, cols := shape[0], shape[1], shape[2], shape[3]
	if channels < 1 || rows < 1 || cols < 1 {
		return nil, fmt.Errorf("loading patches from %s: shape %v has an empty patch dimension", patchPath, shape)
	}
	offsets, offsetShape, err := readArray(offsetPath)
	if err != nil {
		return nil, err
	}
	if len(offsetShape) != 2 {
		return nil, fmt.Errorf("loading offsets from %s: shape %v is not [n, dims]", offsetPath, offsetShape)
	}
	if offsetShape[0] != n {
		return nil, fmt.Errorf("loading offsets from %s: %d offsets for %d patches", offsetPath, offsetShape[0], n)
	}
	dims := offsetShape[1]
	if dims < 1 {
		return nil, fmt.Errorf("loading offsets from %s: shape %v has no offset dimensions", offsetPath, offsetShape)
	}
	channelStride := rows * cols
	patchStride := channels * channelStride
	samples := make([]sample.Sample, 0, n)
	for i := 0; i < n; i++ {
		chs := make([]*mat.Dense, channels)
		base := i * patchStride
		for c := 0; c < channels; c++ {
			data := patches[base+c*channelStride : base+(c+1)*channelStride]
			chs[c] = mat.NewDense(rows, cols, append([]float64(nil), data...))
		}
		offset := append([]float64(nil), offsets[i*dims:(i+1)*dims]...)
		p, err := New(chs, offset)
		if err != nil {
			return nil, fmt.Errorf("loading patch %d from %s: %v", i, patchPath, err)
		}
		samples = append(samples, p)
	}
	return samples, nil
}

func readArray(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %v", path, err)
	}
	defer f.Close()
	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %v", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("reading %s: column-major arrays are not supported", path)
	}
	var data []float64
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %v", path, err)
	}
	return data, r.Header.Descr.Shape, nil
}
