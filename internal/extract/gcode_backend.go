package extract

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/meshvault/meshvault-server/internal/domain"
	"github.com/meshvault/meshvault-server/internal/errors"
)

// GCodeBackend derives bounding dimensions from sliced toolpaths.
// G-code carries no mesh, so vertex/face counts stay zero and the file has
// no renderable geometry (the thumbnail pipeline uses the placeholder).
type GCodeBackend struct{}

// gcodeMoveLimit bounds parse cost: sliced files routinely run to millions
// of lines and the print envelope is established early and often.
const gcodeMoveLimit = 200_000

// Supports implements Backend.
func (b *GCodeBackend) Supports(format string) bool {
	return format == "gcode"
}

// Extract implements Backend.
func (b *GCodeBackend) Extract(path string) (*Metadata, error) {
	f, err := os.Open(path) //#nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeIO, "open %s", path)
	}
	defer f.Close()

	var (
		minX, minY, minZ = 1e18, 1e18, 1e18
		maxX, maxY, maxZ = -1e18, -1e18, -1e18
		moves            int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() && moves < gcodeMoveLimit {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "G0") && !strings.HasPrefix(line, "G1") {
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}

		sawAxis := false
		for _, word := range strings.Fields(line)[1:] {
			if len(word) < 2 {
				continue
			}
			v, err := strconv.ParseFloat(word[1:], 64)
			if err != nil {
				continue
			}
			switch word[0] {
			case 'X', 'x':
				minX, maxX = min(minX, v), max(maxX, v)
				sawAxis = true
			case 'Y', 'y':
				minY, maxY = min(minY, v), max(maxY, v)
				sawAxis = true
			case 'Z', 'z':
				minZ, maxZ = min(minZ, v), max(maxZ, v)
				sawAxis = true
			}
		}
		if sawAxis {
			moves++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeParseFailed, "scan gcode")
	}
	if moves == 0 {
		return nil, errors.ParseFailed("gcode contains no positioned moves")
	}

	return &Metadata{
		Geometry: &domain.GeometrySummary{
			Width:  nonNegative(maxX - minX),
			Height: nonNegative(maxY - minY),
			Depth:  nonNegative(maxZ - minZ),
		},
	}, nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
