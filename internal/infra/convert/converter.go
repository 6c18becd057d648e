// Package convert wraps external DWG-to-DXF converter binaries. Two
// converters are supported: LibreDWG's dwg2dxf and the ODA FileConverter.
// ODA works in directory mode and preserves the input filename; LibreDWG
// takes explicit input and output paths.
package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/ports/adapter"
	"dwg-boq-service/internal/infra/metrics"
)

const (
	KindLibreDWG = "libredwg"
	KindODA      = "oda"
)

var _ adapter.DrawingConverter = (*ExternalConverter)(nil)

type ExternalConverter struct {
	kind    string
	bin     string
	version string
	timeout time.Duration
	log     *zerolog.Logger
}

func NewExternalConverter(cfg config.ConverterConfig, logger *zerolog.Logger) (*ExternalConverter, error) {
	l := logger.With().Str("component", "converter").Logger()
	bin, err := resolveBin(cfg.Kind, cfg.Bin)
	if err != nil {
		return nil, err
	}
	l.Info().Str("kind", cfg.Kind).Str("bin", bin).Msg("converter resolved")
	return &ExternalConverter{
		kind:    cfg.Kind,
		bin:     bin,
		version: cfg.DXFVersion,
		timeout: cfg.Timeout,
		log:     &l,
	}, nil
}

// resolveBin locates the converter executable: an explicit path wins,
// otherwise the conventional binary name is looked up on PATH.
func resolveBin(kind, configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
		if resolved, err := exec.LookPath(configured); err == nil {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: configured binary %q not found", domain.ErrConverterNotFound, configured)
	}
	name := "dwg2dxf"
	if kind == KindODA {
		name = "ODAFileConverter"
	}
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q not in PATH; set converter.bin", domain.ErrConverterNotFound, name)
	}
	return resolved, nil
}

// Convert produces a DXF for inPath under outDir. Inputs that are already
// DXF pass through untouched.
func (c *ExternalConverter) Convert(ctx context.Context, inPath, outDir string) (string, error) {
	if strings.EqualFold(filepath.Ext(inPath), ".dxf") {
		return inPath, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args, dxfPath := BuildArgs(c.kind, c.bin, inPath, outDir, c.version)
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = outDir
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		metrics.ObserveConvert(c.kind, elapsed, false)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: timed out after %s", domain.ErrConversionFailed, c.timeout)
		}
		c.log.Error().Err(err).Str("output", truncateOutput(out)).Msg("converter failed")
		return "", fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	if c.kind == KindODA {
		// ODA writes <basename>.dxf into outDir; pick up whatever it
		// produced in case the case of the extension changed.
		found, ferr := findDXF(outDir)
		if ferr != nil {
			metrics.ObserveConvert(c.kind, elapsed, false)
			return "", ferr
		}
		dxfPath = found
	}
	if fi, err := os.Stat(dxfPath); err != nil || fi.Size() == 0 {
		metrics.ObserveConvert(c.kind, elapsed, false)
		return "", fmt.Errorf("%w: no DXF produced at %s", domain.ErrConversionFailed, dxfPath)
	}

	metrics.ObserveConvert(c.kind, elapsed, true)
	c.log.Debug().Str("dxf", dxfPath).Dur("elapsed", elapsed).Msg("conversion done")
	return dxfPath, nil
}

// BuildArgs constructs the converter command line.
//
// LibreDWG: dwg2dxf <in> -o <out>.dxf --as <version-letter>
// ODA:      ODAFileConverter <inDir> <outDir> <version> DXF 0 1
// (0 = no recursion, 1 = audit and recover)
func BuildArgs(kind, bin, inPath, outDir, version string) (args []string, dxfPath string) {
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	dxfPath = filepath.Join(outDir, base+".dxf")
	if kind == KindODA {
		return []string{filepath.Dir(inPath), outDir, version, "DXF", "0", "1"}, dxfPath
	}
	return []string{inPath, "-o", dxfPath, "--as", libredwgVersion(version)}, dxfPath
}

// libredwgVersion maps ACAD release names onto LibreDWG's rNNNN spelling.
func libredwgVersion(v string) string {
	switch strings.ToUpper(v) {
	case "ACAD2013":
		return "r2013"
	case "ACAD2010":
		return "r2010"
	case "ACAD2007":
		return "r2007"
	case "ACAD2004":
		return "r2004"
	case "ACAD2000":
		return "r2000"
	default:
		return "r2018"
	}
}

func findDXF(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan converter output: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dxf") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: converter produced no DXF", domain.ErrConversionFailed)
}

func truncateOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}
