package model

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/engine/texture"
	"github.com/Faultbox/fasterobj/internal/logger"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

// LoadOptions contains options for loading an OBJ file.
type LoadOptions struct {
	SwapYZ           bool
	ReorderMaterials bool
	ReorderPolygons  bool
	TreatPolygon     bool
	Mode             Mode

	// Images decodes map_Kd textures. Nil uses a texture.Loader with
	// default options.
	Images formats.ImageLoader
}

// DefaultLoadOptions returns the options most renderers want.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		SwapYZ:           true,
		ReorderMaterials: true,
		ReorderPolygons:  true,
		Mode:             ModeIndexed,
	}
}

// Load parses the OBJ file at path with its material libraries and compacts
// it. No GPU calls are made; see Model.Activate.
func Load(path string, opts LoadOptions) (*Model, error) {
	images := opts.Images
	if images == nil {
		images = texture.NewLoader(texture.DefaultOptions())
	}

	start := time.Now()
	obj, err := formats.ParseOBJFile(path, formats.OBJOptions{
		SwapYZ:           opts.SwapYZ,
		ReorderMaterials: opts.ReorderMaterials,
		ReorderPolygons:  opts.ReorderPolygons,
		TreatPolygon:     opts.TreatPolygon,
		MTL:              formats.MTLOptions{Images: images},
	})
	if err != nil {
		return nil, err
	}

	st := obj.Stats()
	logger.Debug("OBJ parsed",
		zap.String("path", path),
		zap.Int("positions", st.Positions),
		zap.Int("normals", st.Normals),
		zap.Int("texcoords", st.TexCoords),
		zap.Int("faces", st.Faces),
		zap.Int("material_groups", st.MaterialGroups),
		zap.Strings("libraries", obj.Libraries),
		zap.Duration("elapsed", time.Since(start)),
	)

	for _, g := range obj.Groups() {
		if g.Material != "" && obj.Materials.Get(g.Material) == nil {
			logger.Warn("material not defined in any library, drawing untextured",
				zap.String("path", path),
				zap.String("material", g.Material),
			)
		}
	}

	return Compact(obj, opts.Mode), nil
}
