/*
Package param defines the configuration under which conditional
regression forests are trained, and parses it from YAML documents.
*/
package param

import (
	"fmt"
	"math"
)

/*
Forest gathers every knob a training run depends on: the stopping
criteria of the trees, the effort spent searching for splits, the
geometry of the sampled patches and the naming of checkpoints. Trees
carry their Forest in every checkpoint, so a resumed run works with
the exact configuration it started with.
*/
type Forest struct {
	// MaxDepth is the depth at which branches stop growing.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// MinPatches is the sample count below which a node becomes a leaf.
	MinPatches int `yaml:"min_patches" json:"min_patches"`
	// NTests is the number of split candidates scored per node.
	NTests int `yaml:"ntests" json:"ntests"`
	// NTrees is the number of trees a forest trains.
	NTrees int `yaml:"ntrees" json:"ntrees"`
	// NImages is the number of annotated images sampled per class.
	NImages int `yaml:"nimages" json:"nimages"`
	// NPatches is the number of patches extracted per image.
	NPatches int `yaml:"npatches" json:"npatches"`
	// FaceSize is the side in pixels faces are scaled to before sampling.
	FaceSize int `yaml:"face_size" json:"face_size"`
	// PatchSizeRatio is the patch side as a fraction of FaceSize.
	PatchSizeRatio float64 `yaml:"patch_size_ratio" json:"patch_size_ratio"`
	// TreePath is where tree checkpoints are kept.
	TreePath string `yaml:"tree_path" json:"tree_path"`
	// ImagePath is where the annotated images are read from.
	ImagePath string `yaml:"image_path" json:"image_path"`
	// Features lists the image channels patches are built from.
	Features []int `yaml:"features" json:"features"`
}

/*
Default returns the configuration training runs start from before a
YAML document overrides any of it.
*/
func Default() Forest {
	return Forest{
		MaxDepth:       15,
		MinPatches:     20,
		NTests:         250,
		NTrees:         10,
		NImages:        500,
		NPatches:       200,
		FaceSize:       100,
		PatchSizeRatio: 0.25,
		TreePath:       "trees",
		Features:       []int{0, 1, 2},
	}
}

/*
PatchSize returns the patch side in pixels, derived from the face size
and the patch size ratio.
*/
func (f Forest) PatchSize() int {
	return int(math.Round(float64(f.FaceSize) * f.PatchSizeRatio))
}

/*
Validate checks the configuration is trainable and returns an error
describing the first problem found.
*/
func (f Forest) Validate() error {
	if f.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", f.MaxDepth)
	}
	if f.MinPatches < 0 {
		return fmt.Errorf("min_patches must not be negative, got %d", f.MinPatches)
	}
	if f.NTests < 1 {
		return fmt.Errorf("ntests must be at least 1, got %d", f.NTests)
	}
	if f.NTrees < 1 {
		return fmt.Errorf("ntrees must be at least 1, got %d", f.NTrees)
	}
	if f.FaceSize < 1 {
		return fmt.Errorf("face_size must be at least 1, got %d", f.FaceSize)
	}
	if f.PatchSizeRatio <= 0 || f.PatchSizeRatio > 1 {
		return fmt.Errorf("patch_size_ratio must be in (0, 1], got %g", f.PatchSizeRatio)
	}
	if f.PatchSize() < 1 {
		return fmt.Errorf("face_size %d and patch_size_ratio %g yield an empty patch", f.FaceSize, f.PatchSizeRatio)
	}
	if len(f.Features) == 0 {
		return fmt.Errorf("at least one feature channel is required")
	}
	return nil
}
