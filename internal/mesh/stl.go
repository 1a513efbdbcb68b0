package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// Binary STL layout: 80-byte header, uint32 triangle count, then 50 bytes
// per triangle (normal + 3 vertices as float32 + uint16 attribute).
const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
)

// DecodeSTL parses STL data, auto-detecting binary versus ASCII encoding.
// The "solid" prefix alone is unreliable - many binary exporters write it
// into the 80-byte header - so the binary size equation is checked first.
func DecodeSTL(data []byte) (*Mesh, error) {
	if isBinarySTL(data) {
		return decodeBinarySTL(data)
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return decodeASCIISTL(data)
	}
	return nil, errors.ParseFailed("not a recognizable STL file")
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize {
		return false
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	return len(data) == stlHeaderSize+int(count)*stlTriangleSize
}

func decodeBinarySTL(data []byte) (*Mesh, error) {
	count := int(binary.LittleEndian.Uint32(data[80:84]))

	m := &Mesh{Triangles: make([]Triangle, 0, count)}
	off := stlHeaderSize
	for i := 0; i < count; i++ {
		// Skip the 12-byte stored normal; it is recomputed from winding.
		v := off + 12
		tri := Triangle{
			A: readVec3f32(data[v:]),
			B: readVec3f32(data[v+12:]),
			C: readVec3f32(data[v+24:]),
		}
		m.Triangles = append(m.Triangles, tri)
		off += stlTriangleSize
	}
	return m, nil
}

func readVec3f32(b []byte) Vec3 {
	return Vec3{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}
}

func decodeASCIISTL(data []byte) (*Mesh, error) {
	m := &Mesh{}

	var verts []Vec3
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "vertex":
			if len(fields) < 4 {
				return nil, errors.ParseFailedf("stl line %d: short vertex", lineNum)
			}
			v, err := parseVec3(fields[1], fields[2], fields[3])
			if err != nil {
				return nil, errors.ParseFailedf("stl line %d: %v", lineNum, err)
			}
			verts = append(verts, v)
		case "endfacet":
			if len(verts) != 3 {
				return nil, errors.ParseFailedf("stl line %d: facet with %d vertices", lineNum, len(verts))
			}
			m.Triangles = append(m.Triangles, Triangle{A: verts[0], B: verts[1], C: verts[2]})
			verts = verts[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "scan ascii stl")
	}
	if len(m.Triangles) == 0 {
		return nil, errors.ParseFailed("ascii stl contains no facets")
	}
	return m, nil
}

func parseVec3(xs, ys, zs string) (Vec3, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return Vec3{}, err
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return Vec3{}, err
	}
	z, err := strconv.ParseFloat(zs, 64)
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{x, y, z}, nil
}
