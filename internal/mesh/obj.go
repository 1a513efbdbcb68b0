package mesh

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/meshvault/meshvault-server/internal/errors"
)

// DecodeOBJ parses Wavefront OBJ data. Only geometry is read: vertex
// positions and faces. Faces with more than three vertices are fan
// triangulated; texture/normal references (v/vt/vn) and negative indices
// are handled.
func DecodeOBJ(data []byte) (*Mesh, error) {
	m := &Mesh{}
	var verts []Vec3

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, errors.ParseFailedf("obj line %d: short vertex", lineNum)
			}
			v, err := parseVec3(fields[1], fields[2], fields[3])
			if err != nil {
				return nil, errors.ParseFailedf("obj line %d: %v", lineNum, err)
			}
			verts = append(verts, v)

		case "f":
			if len(fields) < 4 {
				return nil, errors.ParseFailedf("obj line %d: face with %d vertices", lineNum, len(fields)-1)
			}
			face := make([]Vec3, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				idx, err := parseOBJIndex(ref, len(verts))
				if err != nil {
					return nil, errors.ParseFailedf("obj line %d: %v", lineNum, err)
				}
				face = append(face, verts[idx])
			}
			// Fan triangulation for quads and n-gons.
			for i := 1; i < len(face)-1; i++ {
				m.Triangles = append(m.Triangles, Triangle{A: face[0], B: face[i], C: face[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "scan obj")
	}
	if len(m.Triangles) == 0 {
		return nil, errors.ParseFailed("obj contains no faces")
	}
	return m, nil
}

// parseOBJIndex resolves a face vertex reference ("7", "7/2", "7/2/3",
// "-1") to a zero-based vertex index.
func parseOBJIndex(ref string, numVerts int) (int, error) {
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		ref = ref[:i]
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = numVerts + n + 1 // -1 refers to the most recent vertex
	}
	if n < 1 || n > numVerts {
		return 0, errors.ParseFailedf("vertex index %d out of range (have %d)", n, numVerts)
	}
	return n - 1, nil
}
