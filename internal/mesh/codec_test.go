package mesh

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// encodeBinarySTL produces a valid binary STL for the given mesh.
func encodeBinarySTL(m *Mesh) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))

	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(len(m.Triangles)))
	buf.Write(count)

	writeVec := func(v Vec3) {
		for _, f := range []float64{v.X, v.Y, v.Z} {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
			buf.Write(b)
		}
	}
	for _, t := range m.Triangles {
		writeVec(t.Normal())
		writeVec(t.A)
		writeVec(t.B)
		writeVec(t.C)
		buf.Write([]byte{0, 0})
	}
	return buf.Bytes()
}

func TestDecodeSTL_Binary(t *testing.T) {
	src := boxMesh(Vec3{0, 0, 0}, Vec3{2, 2, 2})
	data := encodeBinarySTL(src)

	m, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL: %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Errorf("TriangleCount: got %d, want 12", m.TriangleCount())
	}
	if m.Bounds().Size() != (Vec3{2, 2, 2}) {
		t.Errorf("Bounds: got %v", m.Bounds())
	}
}

func TestDecodeSTL_ASCII(t *testing.T) {
	data := []byte(`solid tri
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
endsolid tri
`)

	m, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL: %v", err)
	}
	if m.TriangleCount() != 1 {
		t.Errorf("TriangleCount: got %d, want 1", m.TriangleCount())
	}
}

func TestDecodeSTL_BinaryWithSolidHeader(t *testing.T) {
	// Binary exporters often write "solid" into the 80-byte header; the
	// size equation must win over the prefix check.
	src := boxMesh(Vec3{0, 0, 0}, Vec3{1, 1, 1})
	data := encodeBinarySTL(src)
	copy(data[0:], "solid exported-by-cad")

	m, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL: %v", err)
	}
	if m.TriangleCount() != 12 {
		t.Errorf("TriangleCount: got %d, want 12", m.TriangleCount())
	}
}

func TestDecodeSTL_Garbage(t *testing.T) {
	_, err := DecodeSTL([]byte("not a mesh at all"))
	if !errors.Is(err, errors.ErrParseFailed) {
		t.Errorf("expected ParseFailed, got %v", err)
	}
}

func TestDecodeOBJ(t *testing.T) {
	data := []byte(`# quad plus a tri, with v/vt/vn refs
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
f 1 2 -1
`)

	m, err := DecodeOBJ(data)
	if err != nil {
		t.Fatalf("DecodeOBJ: %v", err)
	}
	// Quad fan-triangulates to 2 plus the explicit triangle.
	if m.TriangleCount() != 3 {
		t.Errorf("TriangleCount: got %d, want 3", m.TriangleCount())
	}
}

func TestDecodeOBJ_IndexOutOfRange(t *testing.T) {
	data := []byte("v 0 0 0\nf 1 2 3\n")
	_, err := DecodeOBJ(data)
	if !errors.Is(err, errors.ErrParseFailed) {
		t.Errorf("expected ParseFailed, got %v", err)
	}
}

func make3MF(t *testing.T, modelXML string, path string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(modelXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const tetra3MF = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">
  <resources>
    <object id="1" type="model">
      <mesh>
        <vertices>
          <vertex x="0" y="0" z="0"/>
          <vertex x="10" y="0" z="0"/>
          <vertex x="0" y="10" z="0"/>
          <vertex x="0" y="0" z="10"/>
        </vertices>
        <triangles>
          <triangle v1="0" v2="1" v3="2"/>
          <triangle v1="0" v2="1" v3="3"/>
          <triangle v1="0" v2="2" v3="3"/>
          <triangle v1="1" v2="2" v3="3"/>
        </triangles>
      </mesh>
    </object>
  </resources>
</model>`

func TestDecode3MF(t *testing.T) {
	data := make3MF(t, tetra3MF, "3D/3dmodel.model")

	m, err := Decode3MF(data)
	if err != nil {
		t.Fatalf("Decode3MF: %v", err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("TriangleCount: got %d, want 4", m.TriangleCount())
	}
	if m.Bounds().Size() != (Vec3{10, 10, 10}) {
		t.Errorf("Bounds: got %v", m.Bounds())
	}
}

func TestDecode3MF_NonStandardModelPath(t *testing.T) {
	data := make3MF(t, tetra3MF, "3D/custom.model")

	m, err := Decode3MF(data)
	if err != nil {
		t.Fatalf("Decode3MF: %v", err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("TriangleCount: got %d, want 4", m.TriangleCount())
	}
}

func TestDecode3MF_NotAZip(t *testing.T) {
	_, err := Decode3MF([]byte("plain text"))
	if !errors.Is(err, errors.ErrParseFailed) {
		t.Errorf("expected ParseFailed, got %v", err)
	}
}

func TestDecode3MF_NoModelDocument(t *testing.T) {
	data := make3MF(t, "orphan", "Metadata/thumbnail.png")
	_, err := Decode3MF(data)
	if !errors.Is(err, errors.ErrParseFailed) {
		t.Errorf("expected ParseFailed, got %v", err)
	}
}
