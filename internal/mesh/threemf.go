package mesh

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// 3MF is an OPC container: a zip archive holding an XML model document,
// conventionally at 3D/3dmodel.model. Only mesh geometry is read; build
// transforms, materials, and metadata parts are ignored.

type threeMFModel struct {
	XMLName   xml.Name         `xml:"model"`
	Unit      string           `xml:"unit,attr"`
	Resources threeMFResources `xml:"resources"`
}

type threeMFResources struct {
	Objects []threeMFObject `xml:"object"`
}

type threeMFObject struct {
	ID   string       `xml:"id,attr"`
	Mesh *threeMFMesh `xml:"mesh"`
}

type threeMFMesh struct {
	Vertices  []threeMFVertex   `xml:"vertices>vertex"`
	Triangles []threeMFTriangle `xml:"triangles>triangle"`
}

type threeMFVertex struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type threeMFTriangle struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
	V3 int `xml:"v3,attr"`
}

// Decode3MF parses 3MF container data and merges all mesh objects into a
// single triangle soup.
func Decode3MF(data []byte) (*Mesh, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "open 3mf container")
	}

	modelFile := find3MFModel(zr)
	if modelFile == nil {
		return nil, errors.ParseFailed("3mf container has no model document")
	}

	rc, err := modelFile.Open()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "open 3mf model document")
	}
	defer rc.Close()

	doc, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "read 3mf model document")
	}

	var model threeMFModel
	if err := xml.Unmarshal(doc, &model); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "parse 3mf model xml")
	}

	m := &Mesh{}
	for _, obj := range model.Resources.Objects {
		if obj.Mesh == nil {
			continue
		}
		verts := obj.Mesh.Vertices
		for _, tri := range obj.Mesh.Triangles {
			if tri.V1 >= len(verts) || tri.V2 >= len(verts) || tri.V3 >= len(verts) ||
				tri.V1 < 0 || tri.V2 < 0 || tri.V3 < 0 {
				return nil, errors.ParseFailedf("3mf triangle references vertex out of range (have %d)", len(verts))
			}
			m.Triangles = append(m.Triangles, Triangle{
				A: vec3From3MF(verts[tri.V1]),
				B: vec3From3MF(verts[tri.V2]),
				C: vec3From3MF(verts[tri.V3]),
			})
		}
	}
	if len(m.Triangles) == 0 {
		return nil, errors.ParseFailed("3mf model contains no triangles")
	}
	return m, nil
}

func vec3From3MF(v threeMFVertex) Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// find3MFModel locates the model document: the conventional path first,
// then any *.model entry.
func find3MFModel(zr *zip.Reader) *zip.File {
	for _, f := range zr.File {
		if f.Name == "3D/3dmodel.model" {
			return f
		}
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".model") {
			return f
		}
	}
	return nil
}
