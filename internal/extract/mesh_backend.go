package extract

import (
	"github.com/meshvault/meshvault-server/internal/errors"
	"github.com/meshvault/meshvault-server/internal/mesh"
)

// MeshBackend handles the triangle-mesh formats: STL, OBJ, 3MF.
type MeshBackend struct{}

// Supports implements Backend.
func (b *MeshBackend) Supports(format string) bool {
	switch format {
	case "stl", "obj", "3mf":
		return true
	default:
		return false
	}
}

// Extract implements Backend.
func (b *MeshBackend) Extract(path string) (*Metadata, error) {
	m, err := b.LoadMesh(path)
	if err != nil {
		return nil, err
	}
	return &Metadata{Geometry: summarize(m)}, nil
}

// LoadMesh implements MeshLoader.
func (b *MeshBackend) LoadMesh(path string) (*mesh.Mesh, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	switch Format(path) {
	case "stl":
		return mesh.DecodeSTL(data)
	case "obj":
		return mesh.DecodeOBJ(data)
	case "3mf":
		return mesh.Decode3MF(data)
	default:
		return nil, errors.FormatUnsupported("mesh backend cannot load " + Format(path))
	}
}
