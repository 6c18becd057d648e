package adapter

import "context"

// DrawingConverter turns a DWG file into a DXF file. Implementations wrap
// external converter binaries; inputs that are already DXF pass through.
type DrawingConverter interface {
	// Convert reads the drawing at inPath and produces a DXF under outDir.
	// It returns the path of the produced DXF.
	Convert(ctx context.Context, inPath, outDir string) (string, error)
}
